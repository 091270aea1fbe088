// Package js holds the scripts shared by the CDP based drivers.
package js

import "strings"

// InterceptedBy is called with the target element as this. It returns an
// empty string when a click at the element's centre would reach it, or a
// short description of the element that would receive it instead.
const InterceptedBy = `function() {
	const r = this.getBoundingClientRect();
	const hit = document.elementFromPoint(r.left + r.width / 2, r.top + r.height / 2);
	if (hit === null || hit === this || this.contains(hit)) {
		return "";
	}
	return hit.outerHTML.slice(0, 160);
}`

// Displayed is called with the element as this.
const Displayed = `function() {
	const s = window.getComputedStyle(this);
	const r = this.getBoundingClientRect();
	return s.display !== "none" && s.visibility !== "hidden" && s.opacity !== "0" && r.width > 0 && r.height > 0;
}`

// Enabled is called with the element as this.
const Enabled = `function() { return !this.disabled; }`

// Text is called with the element as this.
const Text = `function() { return this.innerText; }`

// Clear is called with the element as this.
const Clear = `function() {
	this.value = "";
	this.dispatchEvent(new Event("input", { bubbles: true }));
	this.dispatchEvent(new Event("change", { bubbles: true }));
}`

// OnElement wraps a script body so that it can be called with an element
// as this while still seeing that element as arguments[0].
func OnElement(script string) string {
	return "function(...rest) { return (function() {\n" + script + "\n}).apply(this, [this].concat(rest)); }"
}

// Standalone wraps a script body so that it can be called as a plain function.
func Standalone(script string) string {
	return "function(...args) { return (function() {\n" + script + "\n}).apply(null, args); }"
}

// Evaluate wraps a script body into an expression invoked with the given
// JSON encoded argument list.
func Evaluate(script string, argsJSON string) string {
	if strings.TrimSpace(argsJSON) == "" {
		argsJSON = "[]"
	}
	return "(function() {\n" + script + "\n}).apply(null, " + argsJSON + ")"
}
