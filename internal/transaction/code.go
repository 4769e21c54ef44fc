// internal/transaction/code.go
package transaction

import (
	"regexp"
	"strings"

	"github.com/google/uuid"
)

const codeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

var codePattern = regexp.MustCompile(`^IRC-[A-Z]{3}-[A-Z0-9]{5}$`)

// NewCode returns a staff-facing code such as IRC-SIL-AB12C.
func NewCode(kind Kind, mt MembershipType) string {
	segment := "MEM"
	switch kind {
	case KindClass:
		segment = "CLS"
	case KindSession:
		segment = "SES"
	case KindMembership:
		segment = mt.codeSegment()
	}

	id := uuid.New()
	var b strings.Builder
	b.Grow(13)
	b.WriteString("IRC-")
	b.WriteString(segment)
	b.WriteByte('-')
	for i := 0; i < 5; i++ {
		b.WriteByte(codeAlphabet[int(id[i])%len(codeAlphabet)])
	}
	return b.String()
}

// ValidCode reports whether code has the IRC-XXX-XXXXX shape.
func ValidCode(code string) bool {
	return codePattern.MatchString(code)
}
