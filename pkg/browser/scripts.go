package browser

// captureScript serializes the live page into a dom.Snapshot. Every
// captured element is registered in window.__wlNodes under its index so
// later calls can find it again.
const captureScript = `() => {
	const nodes = [];
	window.__wlNodes = nodes;
	const sx = window.scrollX, sy = window.scrollY;
	const skip = new Set(["SCRIPT", "STYLE", "NOSCRIPT", "TEMPLATE"]);

	const visible = (el) => {
		const cs = getComputedStyle(el);
		if (cs.display === "none" || cs.visibility === "hidden") return false;
		const r = el.getBoundingClientRect();
		return r.width > 0 && r.height > 0;
	};

	const walk = (parent, depth) => {
		const out = [];
		if (depth > 400) return out;
		for (const c of parent.childNodes) {
			if (c.nodeType === 3) {
				if (c.data.trim() !== "") out.push({t: 3, x: c.data});
				continue;
			}
			if (c.nodeType !== 1) continue;
			const el = c;
			const r = el.getBoundingClientRect();
			const sn = {
				t: 1,
				n: el.localName,
				a: Array.from(el.attributes, (a) => [a.name, a.value]),
				b: [r.left + sx, r.top + sy, r.width, r.height],
				v: !skip.has(el.tagName) && visible(el),
				i: nodes.length,
			};
			nodes.push(el);
			if (!skip.has(el.tagName) || el.tagName === "TEMPLATE") {
				sn.c = walk(el, depth + 1);
			}
			if (el.shadowRoot) {
				sn.s = {t: 9, c: walk(el.shadowRoot, depth + 1)};
			}
			if (el.tagName === "IFRAME") {
				try {
					const fd = el.contentDocument;
					if (fd) sn.f = {t: 9, c: walk(fd, depth + 1)};
				} catch (e) {}
			}
			out.push(sn);
		}
		return out;
	};

	const de = document.documentElement;
	return JSON.stringify({
		url: location.href,
		title: document.title,
		viewport: {width: innerWidth, height: innerHeight, scrollX: sx, scrollY: sy},
		scrollHeight: Math.max(de.scrollHeight, document.body ? document.body.scrollHeight : 0),
		root: {t: 9, c: walk(document, 0)},
	});
}`

// scrollScript scrolls a captured element into view. It reports false when
// the index is unknown or the element left the page.
const scrollScript = `(i) => {
	const el = window.__wlNodes && window.__wlNodes[i];
	if (!el || !el.isConnected) return false;
	el.scrollIntoView({block: "center", inline: "nearest"});
	return true;
}`
