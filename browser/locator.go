package browser

import (
	"fmt"
	"strings"
)

// Strategy is how a Locator value is interpreted.
type Strategy string

const (
	ByCSS   Strategy = "css selector"
	ByXPath Strategy = "xpath"
	ByID    Strategy = "id"
)

// Locator describes how to find one element.
type Locator struct {
	By    Strategy
	Value string
}

// CSS locates by CSS selector.
func CSS(selector string) Locator { return Locator{By: ByCSS, Value: selector} }

// XPath locates by XPath expression.
func XPath(expr string) Locator { return Locator{By: ByXPath, Value: expr} }

// ID locates by element id.
func ID(id string) Locator { return Locator{By: ByID, Value: id} }

func (l Locator) String() string {
	return fmt.Sprintf("%s=%s", l.By, l.Value)
}

// CSSSelector returns the locator as a CSS selector. XPath locators have
// no CSS equivalent and return false.
func (l Locator) CSSSelector() (string, bool) {
	switch l.By {
	case ByCSS:
		return l.Value, true
	case ByID:
		return `[id="` + strings.ReplaceAll(l.Value, `"`, `\"`) + `"]`, true
	default:
		return "", false
	}
}
