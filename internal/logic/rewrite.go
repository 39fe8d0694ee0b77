package logic

// NNF returns an equivalent formula in negation normal form. Negations of
// atoms and assignments are literals and stay in place; every other
// negation is pushed inwards with invert.
func NNF(f Formula) (Formula, error) {
	switch f := f.(type) {
	case Verum, Falsum, Atom, Value, Assign:
		return f, nil
	case Neg:
		switch f.Arg.(type) {
		case Atom, Value, Assign:
			return f, nil
		}
		inv, err := invert(f.Arg)
		if err != nil {
			return nil, err
		}
		return NNF(inv)
	case Conj:
		args, err := nnfAll(f)
		if err != nil {
			return nil, err
		}
		return Conj(args), nil
	case Disj:
		args, err := nnfAll(f)
		if err != nil {
			return nil, err
		}
		return Disj(args), nil
	case Yesterday:
		arg, err := NNF(f.Arg)
		if err != nil {
			return nil, err
		}
		return Yesterday{Arg: arg}, nil
	case Since:
		l, r, err := nnfPair(f.Left, f.Right)
		if err != nil {
			return nil, err
		}
		return Since{Left: l, Right: r}, nil
	case DualSince:
		l, r, err := nnfPair(f.Left, f.Right)
		if err != nil {
			return nil, err
		}
		return DualSince{Left: l, Right: r}, nil
	}
	return nil, Unsupported("nnf", f)
}

func nnfAll(args []Formula) ([]Formula, error) {
	out := make([]Formula, len(args))
	for i, a := range args {
		n, err := NNF(a)
		if err != nil {
			return nil, err
		}
		out[i] = n
	}
	return out, nil
}

func nnfPair(a, b Formula) (Formula, Formula, error) {
	l, err := NNF(a)
	if err != nil {
		return nil, nil, err
	}
	r, err := NNF(b)
	if err != nil {
		return nil, nil, err
	}
	return l, r, nil
}

// invert returns the negation of f, avoiding a Neg at the root where a dual
// operator exists.
func invert(f Formula) (Formula, error) {
	switch f := f.(type) {
	case Verum:
		return Falsum{}, nil
	case Falsum:
		return Verum{}, nil
	case Atom, Value, Assign:
		return Neg{Arg: f}, nil
	case Neg:
		return f.Arg, nil
	case Conj:
		return Disj(negateAll(f)), nil
	case Disj:
		return Conj(negateAll(f)), nil
	case Yesterday:
		return Yesterday{Arg: Neg{Arg: f.Arg}}, nil
	case Since:
		return DualSince{Left: Neg{Arg: f.Left}, Right: Neg{Arg: f.Right}}, nil
	case DualSince:
		return Since{Left: Neg{Arg: f.Left}, Right: Neg{Arg: f.Right}}, nil
	}
	return nil, Unsupported("invert", f)
}

func negateAll(args []Formula) []Formula {
	out := make([]Formula, len(args))
	for i, a := range args {
		out[i] = Neg{Arg: a}
	}
	return out
}

// SimplifyConstants removes Verum and Falsum from conjunctions and
// disjunctions by the identity and absorbing laws and resolves negated
// constants. Other nodes are rebuilt around their simplified children.
func SimplifyConstants(f Formula) Formula {
	switch f := f.(type) {
	case Neg:
		switch arg := SimplifyConstants(f.Arg).(type) {
		case Verum:
			return Falsum{}
		case Falsum:
			return Verum{}
		default:
			return Neg{Arg: arg}
		}
	case Conj:
		var kept Conj
		for _, sub := range f {
			switch s := SimplifyConstants(sub).(type) {
			case Falsum:
				return Falsum{}
			case Verum:
			default:
				kept = append(kept, s)
			}
		}
		switch len(kept) {
		case 0:
			return Verum{}
		case 1:
			return kept[0]
		}
		return kept
	case Disj:
		var kept Disj
		for _, sub := range f {
			switch s := SimplifyConstants(sub).(type) {
			case Verum:
				return Verum{}
			case Falsum:
			default:
				kept = append(kept, s)
			}
		}
		switch len(kept) {
		case 0:
			return Falsum{}
		case 1:
			return kept[0]
		}
		return kept
	case Yesterday:
		return Yesterday{Arg: SimplifyConstants(f.Arg)}
	case Since:
		return Since{Left: SimplifyConstants(f.Left), Right: SimplifyConstants(f.Right)}
	case DualSince:
		return DualSince{Left: SimplifyConstants(f.Left), Right: SimplifyConstants(f.Right)}
	}
	return f
}
