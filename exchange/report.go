package exchange

import (
	"fmt"
	"strings"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/table"
	"github.com/microcosm-cc/bluemonday"

	"github.com/hazyhaar/domreview/anchor"
	"github.com/hazyhaar/domreview/dom"
	"github.com/hazyhaar/domreview/review"
)

// maxElementHTML bounds the element markup rendered per review.
const maxElementHTML = 4000

// Reporter renders review lists as Markdown.
type Reporter struct {
	policy *bluemonday.Policy
	strict *bluemonday.Policy
	conv   *converter.Converter
}

// NewReporter returns a reporter that sanitizes element markup with the
// UGC policy before converting it.
func NewReporter() *Reporter {
	return &Reporter{
		policy: bluemonday.UGCPolicy(),
		strict: bluemonday.StrictPolicy(),
		conv: converter.NewConverter(
			converter.WithPlugins(
				base.NewBasePlugin(),
				commonmark.NewCommonmarkPlugin(),
				table.NewTablePlugin(),
			),
		),
	}
}

// Report renders the store's reviews, highest priority first.
func Report(doc *dom.Document, s *review.Store) string {
	return NewReporter().Render(doc, s.ToJSON())
}

// Render renders snap. Each review's element is looked up in doc; reviews
// whose element is gone are reported without it.
func (rp *Reporter) Render(doc *dom.Document, snap review.Snapshot) string {
	open, resolved := review.Counts(snap.Reviews)

	var sb strings.Builder
	fmt.Fprintf(&sb, "# Review report: %s\n\n", snap.Page)
	fmt.Fprintf(&sb, "%d open, %d resolved\n", open, resolved)

	for _, r := range review.Apply(snap.Reviews, review.FilterAll, review.SortPriority) {
		status := "open"
		if r.Resolved {
			status = "resolved"
		}
		fmt.Fprintf(&sb, "\n## [%s] %s: %s\n\n", strings.ToUpper(string(r.Priority)), r.Category, firstLine(r.Comment))
		fmt.Fprintf(&sb, "- id: `%s`\n", r.ID)
		fmt.Fprintf(&sb, "- selector: `%s`\n", r.Selector)
		fmt.Fprintf(&sb, "- status: %s\n", status)
		fmt.Fprintf(&sb, "- created: %s\n", r.Created.Format("2006-01-02 15:04"))
		if r.Context != nil && r.Context.Framework != nil {
			fmt.Fprintf(&sb, "- component: %s (%s)\n", r.Context.Framework.ComponentName, r.Context.Framework.Framework)
		}
		if strings.Contains(r.Comment, "\n") {
			fmt.Fprintf(&sb, "\n%s\n", r.Comment)
		}

		if md := rp.element(doc, r); md != "" {
			fmt.Fprintf(&sb, "\n### Element\n\n%s\n", md)
		} else {
			sb.WriteString("\n_Element not found on the page._\n")
		}

		if len(r.Replies) > 0 {
			sb.WriteString("\n### Replies\n\n")
			for _, reply := range r.Replies {
				fmt.Fprintf(&sb, "- **%s**: %s\n", reply.Author, reply.Comment)
			}
		}
	}
	return sb.String()
}

func (rp *Reporter) element(doc *dom.Document, r review.Review) string {
	if doc == nil {
		return ""
	}
	el := anchor.Resolve(doc, anchor.Anchor{Selector: r.Selector, XPath: r.XPath})
	if el == nil {
		return ""
	}
	raw := doc.OuterHTML(el)
	if len(raw) > maxElementHTML {
		raw = raw[:maxElementHTML]
	}
	clean := rp.policy.Sanitize(raw)
	md, err := rp.conv.ConvertString(clean, converter.WithDomain(doc.Location().Origin))
	if err != nil || strings.TrimSpace(md) == "" {
		return strings.TrimSpace(rp.strict.Sanitize(raw))
	}
	return strings.TrimSpace(md)
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(s, "\n")
	return line
}
