package classify

import "github.com/chrissnell/brat/internal/types"

// guard is one entry of an ordered decision list. When when() holds, the guard
// matches: if it has nested guards those are tried next, and then is the
// outcome when none of them match. needs names the fields when() reads; they
// are resolved only once the walk reaches this guard.
type guard[L ~string] struct {
	name  string
	needs []string
	when  func(in inputs) bool
	then  L
	next  []guard[L]
}

// firstMatch walks guards top-down and returns the outcome of the first match,
// along with the names of the guards that led to it. fallback is returned when
// nothing matches. A field missing for a guard that is reached is an error;
// fields of guards never reached are not checked.
func firstMatch[L ~string](guards []guard[L], seg *types.Segment, in *inputs, fallback L) (L, []string, error) {
	for _, g := range guards {
		if err := resolve(seg, in, g.needs...); err != nil {
			return "", nil, err
		}
		if !g.when(*in) {
			continue
		}
		if len(g.next) == 0 {
			return g.then, []string{g.name}, nil
		}
		label, path, err := firstMatch(g.next, seg, in, g.then)
		if err != nil {
			return "", nil, err
		}
		return label, append([]string{g.name}, path...), nil
	}
	return fallback, nil, nil
}

func always(inputs) bool { return true }
