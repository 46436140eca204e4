package parser

// 页眉页脚比较时只看前 120 个字符
const headerFooterPrefixLen = 120

func linePrefix(line string) string {
	r := []rune(line)
	if len(r) > headerFooterPrefixLen {
		r = r[:headerFooterPrefixLen]
	}
	return string(r)
}

// repeatThreshold 一行至少出现在 max(2, floor(0.6*页数)) 页才算重复的页眉/页脚
func repeatThreshold(pageCount int) int {
	return max(2, pageCount*6/10)
}

// RemoveRepeatedHeadersFooters 删除在多数页上重复出现的首行(页眉)和末行(页脚)
//
// 少于两页时原样返回。输入不会被修改。
func RemoveRepeatedHeadersFooters(pages [][]string) [][]string {
	if len(pages) < 2 {
		return pages
	}

	tops := make(map[string]int)
	bottoms := make(map[string]int)
	for _, lines := range pages {
		if len(lines) == 0 {
			continue
		}
		tops[linePrefix(lines[0])]++
		bottoms[linePrefix(lines[len(lines)-1])]++
	}

	threshold := repeatThreshold(len(pages))
	out := make([][]string, len(pages))
	for i, lines := range pages {
		res := lines
		if len(res) > 0 && tops[linePrefix(res[0])] >= threshold {
			res = res[1:]
		}
		if len(res) > 0 && bottoms[linePrefix(res[len(res)-1])] >= threshold {
			res = res[:len(res)-1]
		}
		out[i] = append([]string(nil), res...)
	}
	return out
}
