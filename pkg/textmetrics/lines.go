package textmetrics

// FunctionLines returns the 1-indexed inclusive [start,end] subrange of
// lines, clamped to lines' bounds.
func FunctionLines(lines []string, start, end int) []string {
	if start < 1 {
		start = 1
	}

	if end > len(lines) {
		end = len(lines)
	}

	if start > end {
		return nil
	}

	return lines[start-1 : end]
}
