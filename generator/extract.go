package generator

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

const fence = "```"

var (
	md      = goldmark.New()
	langTag = regexp.MustCompile(`^[A-Za-z0-9_+#.\-]+$`)
)

// Extract returns the script inside the first ```-delimited region of a
// model response. The region ends at the next ``` marker. A language tag
// on the opening line is split off into Script.Language.
func Extract(response string) (Script, error) {
	open := strings.Index(response, fence)
	if open < 0 {
		return Script{}, ErrNoCodeBlock
	}
	rest := response[open+len(fence):]
	end := strings.Index(rest, fence)
	if end < 0 {
		return Script{}, fmt.Errorf("%w: opening ``` has no closing marker", ErrNoCodeBlock)
	}

	script := parseRegion(rest[:end])
	if script.Body == "" {
		return Script{}, fmt.Errorf("%w: code block is empty", ErrNoCodeBlock)
	}
	return script, nil
}

func parseRegion(region string) Script {
	nl := strings.IndexByte(region, '\n')
	if nl < 0 {
		// ```print('hi')``` carries no info string.
		return Script{Body: strings.TrimSpace(region)}
	}
	if info := strings.TrimSpace(region[:nl]); info != "" && !langTag.MatchString(info) {
		region = "\n" + region
	}

	src := []byte(fence + region + "\n" + fence + "\n")
	doc := md.Parser().Parse(text.NewReader(src))
	for n := doc.FirstChild(); n != nil; n = n.NextSibling() {
		block, ok := n.(*ast.FencedCodeBlock)
		if !ok {
			continue
		}
		var body strings.Builder
		lines := block.Lines()
		for i := 0; i < lines.Len(); i++ {
			seg := lines.At(i)
			body.Write(seg.Value(src))
		}
		return Script{
			Body:     strings.TrimSpace(body.String()),
			Language: strings.ToLower(string(block.Language(src))),
		}
	}
	return Script{Body: strings.TrimSpace(region)}
}
