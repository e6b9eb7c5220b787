package nlp

func isNominal(pos string) bool {
	return pos == POSNoun || pos == POSPropN || pos == POSPron || pos == POSNum
}

// ParseDependencies assigns shallow dependency labels in place:
//   - the nominal closest before the first verb is the nsubj,
//   - the first nominal after each verb is its dobj,
//   - the first nominal after each adposition is its pobj,
//   - the first verb is the ROOT.
//
// Labels already set are left alone.
func ParseDependencies(tokens []Token) {
	firstVerb := -1
	for i := range tokens {
		if tokens[i].POS == POSVerb {
			firstVerb = i
			break
		}
	}
	if firstVerb < 0 {
		return
	}
	if tokens[firstVerb].Dep == "" {
		tokens[firstVerb].Dep = DepRoot
	}

	for i := firstVerb - 1; i >= 0; i-- {
		if isNominal(tokens[i].POS) {
			if tokens[i].Dep == "" {
				tokens[i].Dep = DepNsubj
			}
			break
		}
	}

	pending := ""
	for i := firstVerb; i < len(tokens); i++ {
		switch pos := tokens[i].POS; {
		case pos == POSVerb:
			pending = DepDobj
		case pos == POSAdp:
			pending = DepPobj
		case isNominal(pos) && pending != "":
			if tokens[i].Dep == "" {
				tokens[i].Dep = pending
			}
			pending = ""
		}
	}
}
