// internal/validation/blacklist.go
package validation

import (
	"regexp"
	"strings"
)

// formatTokenGroupRegexps compiles space-delimited token groups into regexps
// matching runs of consecutive tokens inside tokenized text. Matching anchors
// on token boundaries, so a group can never fire on a substring of a larger
// token ("egift card" does not match the "gift card" group).
func formatTokenGroupRegexps(tokenGroups []string) []*regexp.Regexp {
	regexps := make([]*regexp.Regexp, 0, len(tokenGroups))
	for _, group := range tokenGroups {
		regexps = append(regexps, regexp.MustCompile(`(^| )`+group+`($| )`))
	}
	return regexps
}

var imageURLBlacklistTokenGroups = formatTokenGroupRegexps([]string{
	"noimage",
	"no image",
	"nophoto",
	"no photo",
	"placeholder",
})

var productTitleBlacklistTokenGroups = formatTokenGroupRegexps([]string{
	"test product",
	"gift card",
	"egift card",
	"digital card",
	"virtual card",
	"gift voucher",
	"custom gift box",
	"promo card",
	"promotion card",
	"tarjeta regalo",
	"insurance",
	"upgrade shipping",
	"shipping upgrade",
	"service fee",
	"handling fee",
	"credit card fee",
	"credit card surcharge",
	"in store pickup",
	"instore pickup",
	"pickup in store",
	"pickup instore",
	"item customizations",
	"item personalization",
	"bottle deposit",
})

var tokenizerRegexp = regexp.MustCompile(`[\W_]+`)

// containsBlacklistTokens splits text on non-word characters into
// single-spaced lowercase tokens and reports the first token group matching a
// contiguous token run.
func containsBlacklistTokens(text string, tokenGroups []*regexp.Regexp) (bool, string) {
	tokenized := strings.ToLower(strings.Join(tokenizerRegexp.Split(text, -1), " "))

	for _, group := range tokenGroups {
		if match := group.FindString(tokenized); match != "" {
			return true, strings.TrimSpace(match)
		}
	}
	return false, ""
}
