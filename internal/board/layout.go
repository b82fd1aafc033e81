package board

// Character code mapping per the official Vestaboard table
// (https://docs.vestaboard.com/docs/charactercodes/).
var textToCode = map[rune]int{
	' ': 0,
	'1': 27, '2': 28, '3': 29, '4': 30, '5': 31,
	'6': 32, '7': 33, '8': 34, '9': 35, '0': 36,
	'!': 37, '@': 38, '#': 39, '$': 40, '(': 41, ')': 42,
	'-': 44, '+': 46, '&': 47, '=': 48, ';': 49, ':': 50,
	'\'': 52, '"': 53, '%': 54, ',': 55, '.': 56, '/': 59,
	'?': 60,
}

func init() {
	for i := 0; i < 26; i++ {
		textToCode[rune('A'+i)] = i + 1
		textToCode[rune('a'+i)] = i + 1
	}
}

// TextToLayout renders text onto an empty layout, centered on the first
// row and truncated to the board width. The Local API accepts only layout
// arrays, so text messages pass through here before sending.
func TextToLayout(text string, bt Type) [][]int {
	layout := make([][]int, bt.Rows)
	for r := range layout {
		layout[r] = make([]int, bt.Cols)
	}

	runes := []rune(text)
	if len(runes) > bt.Cols {
		runes = runes[:bt.Cols]
	}
	start := (bt.Cols - len(runes)) / 2
	for i, ch := range runes {
		code, ok := textToCode[ch]
		if !ok {
			code = 0
		}
		layout[0][start+i] = code
	}
	return layout
}
