package modelcfg

import "strings"

// DiffLines compares two model texts line by line with a greedy forward
// scan: equal lines emit "  line"; on a mismatch the target is scanned
// ahead for the current source line, emitting the skipped target lines as
// "+ line" additions, or "- line" when the source line never reappears.
// Deterministic, not minimal.
func DiffLines(source, target string) string {
	src := strings.Split(source, "\n")
	tgt := strings.Split(target, "\n")

	var out []string
	i, j := 0, 0
	for i < len(src) && j < len(tgt) {
		if src[i] == tgt[j] {
			out = append(out, "  "+src[i])
			i++
			j++
			continue
		}

		found := -1
		for k := j + 1; k < len(tgt); k++ {
			if tgt[k] == src[i] {
				found = k
				break
			}
		}
		if found >= 0 {
			for ; j < found; j++ {
				out = append(out, "+ "+tgt[j])
			}
			continue
		}

		out = append(out, "- "+src[i])
		i++
	}
	for ; i < len(src); i++ {
		out = append(out, "- "+src[i])
	}
	for ; j < len(tgt); j++ {
		out = append(out, "+ "+tgt[j])
	}

	return strings.Join(out, "\n")
}
