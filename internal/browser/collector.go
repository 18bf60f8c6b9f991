// internal/browser/collector.go
package browser

import (
	"fmt"
	"strings"
)

// runtimeJS installs window.__chatpilot once per document. It hands out
// stable element references (a WeakMap keyed by node), serializes the DOM
// including open shadow roots, and performs actions by reference.
const runtimeJS = `(() => {
  if (window.__chatpilot) return window.__chatpilot;
  const refs = new WeakMap();
  const live = new Map();
  let next = 1;
  const MAX_NODES = 20000;

  const refOf = (el) => {
    let r = refs.get(el);
    if (!r) { r = next++; refs.set(el, r); }
    live.set(r, new WeakRef(el));
    return r;
  };
  const byRef = (r) => {
    const w = live.get(r);
    const el = w && w.deref();
    if (!el || !el.isConnected) { live.delete(r); return null; }
    return el;
  };

  const snapshot = () => {
    let count = 0, truncated = false;
    const walk = (el) => {
      if (++count > MAX_NODES) { truncated = true; return null; }
      const r = el.getBoundingClientRect();
      const cs = getComputedStyle(el);
      const n = {
        ref: refOf(el), tag: el.tagName,
        rect: { x: r.x, y: r.y, width: r.width, height: r.height },
        style: { display: cs.display, visibility: cs.visibility, opacity: parseFloat(cs.opacity), cursor: cs.cursor },
      };
      if (el.attributes.length) n.attrs = Array.from(el.attributes, (a) => [a.name, a.value]);
      if (el.tagName === 'TEXTAREA' || el.tagName === 'INPUT') n.value = String(el.value);
      if (el.disabled === true) n.disabled = true;
      if (typeof el.onclick === 'function') n.click = true;
      const kids = [];
      for (const c of el.childNodes) {
        if (c.nodeType === 1) {
          if (c.tagName === 'SCRIPT' || c.tagName === 'STYLE') continue;
          const k = walk(c);
          if (k) kids.push(k);
        } else if (c.nodeType === 3 && c.data.trim()) {
          kids.push({ text: c.data });
        }
      }
      if (kids.length) n.children = kids;
      if (el.shadowRoot) {
        n.hasShadow = true;
        const s = [];
        for (const c of el.shadowRoot.children) { const k = walk(c); if (k) s.push(k); }
        if (s.length) n.shadow = s;
      }
      return n;
    };
    const root = walk(document.documentElement);
    return JSON.stringify({
      url: location.href, title: document.title,
      viewport: { x: 0, y: 0, width: innerWidth, height: innerHeight },
      root, truncated,
    });
  };

  const center = (r) => {
    const el = byRef(r);
    if (!el) return null;
    el.scrollIntoView({ block: 'center', inline: 'center' });
    const b = el.getBoundingClientRect();
    return { x: b.x + b.width / 2, y: b.y + b.height / 2 };
  };

  const focus = (r) => {
    const el = byRef(r);
    if (!el) return false;
    el.focus();
    return true;
  };

  const setValue = (r, text) => {
    const el = byRef(r);
    if (!el) return false;
    const proto = el.tagName === 'TEXTAREA' ? HTMLTextAreaElement.prototype : HTMLInputElement.prototype;
    const setter = Object.getOwnPropertyDescriptor(proto, 'value').set;
    el.focus();
    setter.call(el, text);
    el.dispatchEvent(new Event('input', { bubbles: true }));
    el.dispatchEvent(new Event('change', { bubbles: true }));
    return true;
  };

  const selectContents = (r) => {
    const el = byRef(r);
    if (!el) return false;
    el.focus();
    const range = document.createRange();
    range.selectNodeContents(el);
    const sel = getSelection();
    sel.removeAllRanges();
    sel.addRange(range);
    return true;
  };

  const api = { snapshot, center, focus, setValue, selectContents, byRef };
  window.__chatpilot = api;
  return api;
})()`

// Script wraps a function body so it runs with the runtime bound to cp,
// installing the runtime first when the document is fresh.
func Script(body string) string {
	return "(() => { const cp = " + runtimeJS + "; " + body + " })()"
}

// call invokes one runtime method with JSON-encoded arguments.
func call(method string, args ...any) string {
	lits := make([]string, len(args))
	for i, a := range args {
		lits[i] = JSLiteral(a)
	}
	return Script(fmt.Sprintf("return cp.%s(%s);", method, strings.Join(lits, ", ")))
}

// JSLiteral renders a Go value as a JavaScript literal.
func JSLiteral(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return "null"
	}
	return string(b)
}
