package isolate

// Page scripts. Each is a function expression evaluated with the listed
// arguments.

// hideVisibilityScript sets visibility:hidden on every match of each
// selector and returns the number of elements hidden. Invalid selectors are
// skipped. Args: selectors []string.
const hideVisibilityScript = `(selectors) => {
	let hidden = 0;
	for (const sel of selectors) {
		try {
			document.querySelectorAll(sel).forEach((el) => {
				el.style.visibility = 'hidden';
				hidden++;
			});
		} catch (e) {}
	}
	return hidden;
}`

// existsScript reports whether selector matches an element. Args: selector.
const existsScript = `(sel) => !!document.querySelector(sel)`

// isolateBlockScript reduces the page to the block matched by sel. It hides
// every sibling subtree along the ancestor path, widens the ancestors, hides
// elements matching any of hide, hides fixed elements that do not overlap the
// block and resets document overflow. It returns the number of hidden
// elements, or -1 when the block is gone. Args: sel string, hide []string.
const isolateBlockScript = `(sel, hide) => {
	const block = document.querySelector(sel);
	if (!block) return -1;

	const path = [];
	for (let cur = block; cur && cur !== document.body; cur = cur.parentElement) {
		path.push(cur);
	}

	let hidden = 0;
	for (const node of path) {
		const parent = node.parentElement;
		if (!parent) continue;
		for (const sibling of Array.from(parent.children)) {
			if (sibling === node || sibling.contains(block)) continue;
			sibling.style.display = 'none';
			hidden++;
		}
	}

	block.style.cssText += ';position: relative !important; top: 0 !important; left: 0 !important; margin: 0 !important; width: 100% !important; z-index: 1000 !important;';
	for (const node of path) {
		node.style.width = '100%';
		node.style.maxWidth = '100%';
	}

	for (const h of hide) {
		try {
			document.querySelectorAll(h).forEach((el) => {
				el.style.display = 'none';
				hidden++;
			});
		} catch (e) {}
	}

	const rect = block.getBoundingClientRect();
	for (const el of Array.from(document.body.querySelectorAll('*'))) {
		if (el.contains(block) || block.contains(el)) continue;
		if (window.getComputedStyle(el).position !== 'fixed') continue;
		const r = el.getBoundingClientRect();
		const overlaps = r.left < rect.right && r.right > rect.left && r.top < rect.bottom && r.bottom > rect.top;
		if (!overlaps) {
			el.style.display = 'none';
			hidden++;
		}
	}

	const reset = 'height: auto !important; scroll-behavior: auto !important; overflow: visible !important;';
	document.documentElement.style.cssText = reset;
	document.body.style.cssText = reset;
	return hidden;
}`

// visibleScript reports whether the element matched by sel is rendered
// according to its computed display, visibility and opacity. Args: sel.
const visibleScript = `(sel) => {
	const el = document.querySelector(sel);
	if (!el) return false;
	const style = window.getComputedStyle(el);
	return style.display !== 'none' && style.visibility !== 'hidden' && style.opacity !== '0';
}`
