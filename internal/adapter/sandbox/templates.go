package sandbox

import (
	"regexp"
	"strings"
	"text/template"
)

// relayScript forwards console output, uncaught errors and rejections to
// the host page, and routes link clicks: fragments scroll in place,
// absolute http(s) links open a new window, everything else is native.
const relayScript = `(function () {
  var SOURCE = __SOURCE__;
  function stringify(v) {
    if (typeof v === "string") return v;
    if (v instanceof Error) return v.stack || v.message || String(v);
    try { return JSON.stringify(v); } catch (e) { return String(v); }
  }
  function post(level, args) {
    try {
      window.parent.postMessage({
        source: SOURCE,
        level: level,
        message: Array.prototype.map.call(args, stringify).join(" "),
        timestamp: Date.now()
      }, "*");
    } catch (e) {}
  }
  ["log", "warn", "error", "info"].forEach(function (level) {
    var original = console[level];
    console[level] = function () {
      post(level, arguments);
      if (original) original.apply(console, arguments);
    };
  });
  window.addEventListener("error", function (ev) {
    post("error", [ev.message || "Script error"]);
  });
  window.addEventListener("unhandledrejection", function (ev) {
    post("error", ["Unhandled promise rejection: " + stringify(ev.reason)]);
  });
  document.addEventListener("click", function (ev) {
    var a = ev.target && ev.target.closest ? ev.target.closest("a[href]") : null;
    if (!a) return;
    var href = a.getAttribute("href") || "";
    if (href.charAt(0) === "#") {
      ev.preventDefault();
      var id = href.slice(1);
      var el = id ? document.getElementById(id) : null;
      if (el) el.scrollIntoView({ behavior: "smooth" });
      else window.scrollTo({ top: 0, behavior: "smooth" });
      return;
    }
    if (/^https?:\/\//i.test(href)) {
      ev.preventDefault();
      window.open(href, "_blank", "noopener");
    }
  }, true);
})();`

func prelude() string {
	return strings.Replace(relayScript, "__SOURCE__", jsString(ConsoleSource), 1)
}

// hookPrelude exposes the React exports available to bundles unqualified, since
// the assembler strips their import statements.
const hookPrelude = `var { useState, useEffect, useRef, useMemo, useCallback, useReducer, useContext, useLayoutEffect, useId, createContext, Fragment, forwardRef, memo } = React;`

var styleCloseRe = regexp.MustCompile(`(?i)</style`)

func safeStyle(css string) string {
	return styleCloseRe.ReplaceAllString(css, `<\/style`)
}

var funcs = template.FuncMap{
	"style":              safeStyle,
	"hookPreludeLiteral": func() string { return jsString(hookPrelude) },
}

var componentTmpl = template.Must(template.New("component").Funcs(funcs).Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<script>{{.Prelude}}</script>
<style>
html, body { margin: 0; padding: 0; font-family: system-ui, sans-serif; }
#canvaschat-failure { position: fixed; inset: 0; padding: 24px; background: #fff5f5; color: #742a2a; overflow: auto; z-index: 2147483647; }
#canvaschat-failure h2 { margin: 0 0 12px; font-size: 16px; }
#canvaschat-failure pre { white-space: pre-wrap; font-size: 13px; }
#canvaschat-failure p { font-size: 13px; color: #9b2c2c; }
</style>
<style>{{style .Styles}}</style>
<script src="{{.ReactURL}}" crossorigin></script>
<script src="{{.ReactDOMURL}}" crossorigin></script>
<script src="{{.BabelURL}}"></script>
</head>
<body>
<div id="root"></div>
<script>
(function () {
  var IMPORTS = {{.Imports}};
  function fail(message) {
    var panel = document.createElement("div");
    panel.id = "canvaschat-failure";
    var title = document.createElement("h2");
    title.textContent = "This component could not be rendered";
    var pre = document.createElement("pre");
    pre.textContent = message;
    panel.appendChild(title);
    panel.appendChild(pre);
    if (IMPORTS.length) {
      var note = document.createElement("p");
      note.textContent = "It imports packages that may be unavailable in the preview: " + IMPORTS.join(", ");
      panel.appendChild(note);
    }
    document.body.appendChild(panel);
    console.error(message);
  }
{{- if .Failure}}
  fail({{.Failure}});
{{- else}}
  try {
    if (!window.React || !window.ReactDOM || !window.Babel) {
      throw new Error("Preview libraries failed to load");
    }
    var source = {{.Source}};
    var compiled = Babel.transform(source, { presets: ["react"] }).code;
    var factory = new Function("React", "ReactDOM",
      {{hookPreludeLiteral}} + "\n" + compiled + "\nreturn typeof " + {{.Entry}} + " !== 'undefined' ? " + {{.Entry}} + " : null;");
    var Entry = factory(React, ReactDOM);
    if (typeof Entry !== "function" && typeof Entry !== "object") {
      throw new Error("Entry component " + {{.Entry}} + " was not defined");
    }
    var root = ReactDOM.createRoot(document.getElementById("root"));
    root.render(React.createElement(Entry));
  } catch (err) {
    fail(err && err.message ? err.message : String(err));
  }
{{- end}}
})();
</script>
</body>
</html>
`))

var markupTmpl = template.Must(template.New("markup").Funcs(funcs).Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
` + headBlock + `</head>
<body>
{{.Body}}
` + tailBlock + `</body>
</html>
`))

const headBlock = `<script>{{.Prelude}}</script>
{{- if .Styles}}
<style>{{style .Styles}}</style>
{{- end}}
`

const tailBlock = `<script>
(function () {
  var s = document.createElement("script");
  s.text = {{.Script}};
  document.body.appendChild(s);
})();
</script>
`

var (
	headTmpl = template.Must(template.New("head").Funcs(funcs).Parse(headBlock))
	tailTmpl = template.Must(template.New("tail").Funcs(funcs).Parse(tailBlock))
)
