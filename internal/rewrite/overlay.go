package rewrite

import (
	"encoding/json"
	"fmt"
)

// overlayScript renders the navigation overlay: a small fixed badge
// linking back to the resolver, plus a click handler that keeps
// same-tab, non-download, root-absolute link navigation under the
// reserved prefix.
func overlayScript(basePath string) string {
	root, _ := json.Marshal(basePath)
	return fmt.Sprintf(overlayTemplate, root)
}

const overlayTemplate = `
<script data-wisp-overlay>
(function () {
  "use strict";
  var root = %s;

  var badge = document.createElement("a");
  badge.href = "/";
  badge.textContent = "← wisp";
  badge.setAttribute("style",
    "position:fixed;bottom:12px;right:12px;z-index:2147483647;" +
    "padding:6px 10px;border-radius:6px;background:#1a1a2e;color:#e0e0ff;" +
    "font:12px/1.4 system-ui,sans-serif;text-decoration:none;opacity:0.85;");
  if (document.body) document.body.appendChild(badge);

  document.addEventListener("click", function (ev) {
    var a = ev.target && ev.target.closest ? ev.target.closest("a") : null;
    if (!a || a === badge) return;
    if (a.target && a.target !== "_self") return;
    if (a.hasAttribute("download")) return;
    var href = a.getAttribute("href");
    if (!href || href.charAt(0) !== "/") return;
    if (href.indexOf("//") === 0) return;
    if (href.indexOf(root) === 0) return;
    ev.preventDefault();
    window.location.href = root + href.replace(/^\/+/, "");
  }, true);
})();
</script>
`
