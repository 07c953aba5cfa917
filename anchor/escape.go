package anchor

import (
	"fmt"
	"regexp"
	"strings"
)

// utilityClass matches Tailwind/Bootstrap style class prefixes. Such classes
// describe presentation, change often and are shared by many elements, so
// they make poor anchors.
var utilityClass = regexp.MustCompile(`^(mt-|mb-|ml-|mr-|mx-|my-|pt-|pb-|pl-|pr-|px-|py-|p-\d|m-\d|w-|h-|min-w-|min-h-|max-w-|max-h-|flex|grid|text-|bg-|border-|rounded|shadow|opacity-|overflow-|z-|gap-|space-|col-|row-|hidden|block|inline|absolute|relative|fixed|sticky|sr-only|dark:|hover:|focus:|lg:|md:|sm:|xl:|2xl:|xs:)`)

// IsUtilityClass reports whether class is a utility class.
func IsUtilityClass(class string) bool {
	return utilityClass.MatchString(class)
}

// EscapeIdent escapes s for use as a CSS identifier, following the CSSOM
// serialization rules.
func EscapeIdent(s string) string {
	rs := []rune(s)
	var sb strings.Builder
	for i, r := range rs {
		switch {
		case r == 0:
			sb.WriteRune('\uFFFD')
		case (r >= 0x1 && r <= 0x1f) || r == 0x7f:
			fmt.Fprintf(&sb, `\%x `, r)
		case i == 0 && r >= '0' && r <= '9':
			fmt.Fprintf(&sb, `\%x `, r)
		case i == 1 && r >= '0' && r <= '9' && rs[0] == '-':
			fmt.Fprintf(&sb, `\%x `, r)
		case i == 0 && r == '-' && len(rs) == 1:
			sb.WriteString(`\-`)
		case r >= 0x80 || r == '-' || r == '_' ||
			(r >= '0' && r <= '9') || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z'):
			sb.WriteRune(r)
		default:
			sb.WriteByte('\\')
			sb.WriteRune(r)
		}
	}
	return sb.String()
}
