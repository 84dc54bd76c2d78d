//go:build js && wasm

// Command webui is the browser bundle loaded by every page. Build it with
// make wasm; it replaces the page helpers a script tag would otherwise carry.
package main

import (
	"context"
	"syscall/js"

	"github.com/jonboulle/clockwork"
	"github.com/mr1hm/school-finance/internal/webui"
)

type element struct{ v js.Value }

func (e element) Text() string { return e.v.Get("textContent").String() }

func (e element) Category() webui.Category {
	return webui.CategoryFromClass(e.v.Get("className").String())
}

func (e element) SetOpacity(v float64) {
	style := e.v.Get("style")
	style.Set("transition", "opacity 0.3s")
	style.Set("opacity", v)
}

func (e element) Attached() bool { return e.v.Get("isConnected").Bool() }

func (e element) Remove() { e.v.Call("remove") }

type document struct{ v js.Value }

func (d document) OnReady(fn func()) {
	if d.v.Get("readyState").String() != "loading" {
		fn()
		return
	}
	var cb js.Func
	cb = js.FuncOf(func(js.Value, []js.Value) any {
		cb.Release()
		fn()
		return nil
	})
	d.v.Call("addEventListener", "DOMContentLoaded", cb)
}

func (d document) Alerts() []webui.Element {
	nodes := d.v.Call("querySelectorAll", ".alert")
	out := make([]webui.Element, 0, nodes.Length())
	for i := 0; i < nodes.Length(); i++ {
		out = append(out, element{nodes.Index(i)})
	}
	return out
}

type location struct{ v js.Value }

func (l location) Assign(url string) { l.v.Set("href", url) }

type window struct{ v js.Value }

func (w window) Confirm(message string) bool { return w.v.Call("confirm", message).Bool() }

func main() {
	win := js.Global()
	doc := document{win.Get("document")}
	loc := location{win.Get("location")}

	win.Set("navigateTo", js.FuncOf(func(_ js.Value, args []js.Value) any {
		if len(args) > 0 {
			webui.NavigateTo(loc, args[0].String())
		}
		return nil
	}))
	logout := js.FuncOf(func(js.Value, []js.Value) any {
		webui.Logout(loc, window{win})
		return nil
	})
	win.Set("logout", logout)

	doc.OnReady(func() {
		links := doc.v.Call("querySelectorAll", ".logout-link")
		for i := 0; i < links.Length(); i++ {
			links.Index(i).Call("addEventListener", "click", js.FuncOf(func(_ js.Value, args []js.Value) any {
				args[0].Call("preventDefault")
				webui.Logout(loc, window{win})
				return nil
			}))
		}
		buttons := doc.v.Call("querySelectorAll", ".alert .close")
		for i := 0; i < buttons.Length(); i++ {
			alert := buttons.Index(i).Call("closest", ".alert")
			buttons.Index(i).Call("addEventListener", "click", js.FuncOf(func(js.Value, []js.Value) any {
				webui.Close(element{alert})
				return nil
			}))
		}
	})

	webui.NewDismisser(clockwork.NewRealClock()).Install(context.Background(), doc)

	select {}
}
