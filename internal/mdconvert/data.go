package mdconvert

// ConversionResult carries the Markdown rendition of one extracted
// content region.
type ConversionResult struct {
	markdown string
}

func NewConversionResult(markdown string) ConversionResult {
	return ConversionResult{
		markdown: markdown,
	}
}

func (c ConversionResult) Markdown() string {
	return c.markdown
}

func (c ConversionResult) IsEmpty() bool {
	return c.markdown == ""
}
