package web

import (
	"context"
	"io"
	"strconv"

	"github.com/a-h/templ"

	"towing-contact/api/services/contact"
)

// FormView is what the contact section needs to render.
type FormView struct {
	State   contact.State
	Labels  contact.Labels
	Invalid contact.ValidationErrors
	// Notice is a short message shown above the form, e.g. for a rejected
	// service type.
	Notice    string
	Action    string
	EventsURL string
}

// htmlWriter keeps the first write error so components can stream without
// checking every call.
type htmlWriter struct {
	w   io.Writer
	err error
}

func (h *htmlWriter) Write(p []byte) (int, error) {
	if h.err != nil {
		return 0, h.err
	}
	n, err := h.w.Write(p)
	h.err = err
	return n, err
}

func (h *htmlWriter) raw(s string) {
	_, _ = io.WriteString(h, s)
}

func (h *htmlWriter) text(s string) {
	h.raw(templ.EscapeString(s))
}

func (h *htmlWriter) attr(name, value string) {
	h.raw(" " + name + "=\"" + templ.EscapeString(value) + "\"")
}

func (h *htmlWriter) render(ctx context.Context, c templ.Component) {
	if h.err != nil {
		return
	}
	if err := c.Render(ctx, h); err != nil && h.err == nil {
		h.err = err
	}
}

// ContactPage wraps the contact section in a minimal document.
func ContactPage(v FormView) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		h := &htmlWriter{w: w}
		h.raw(`<!DOCTYPE html><html lang="sr"><head><meta charset="utf-8">`)
		h.raw(`<meta name="viewport" content="width=device-width, initial-scale=1">`)
		h.raw(`<title>Kontaktirajte nas</title></head><body>`)
		h.render(ctx, ContactSection(v))
		h.raw(`</body></html>`)
		return h.err
	})
}

// ContactSection renders the form with its fields, the service select and
// the submit button whose text is the current status label.
func ContactSection(v FormView) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		h := &htmlWriter{w: w}
		f := v.State.Fields
		snap := v.State.Status

		h.raw(`<section id="contact" class="py-20 px-6">`)
		h.raw(`<div class="container mx-auto max-w-2xl">`)
		h.raw(`<h2 class="text-3xl font-bold text-center mb-8">Kontaktirajte nas</h2>`)
		if v.Notice != "" {
			h.raw(`<p class="notice" role="alert">`)
			h.text(v.Notice)
			h.raw(`</p>`)
		}

		h.raw(`<form method="post" class="space-y-6"`)
		h.attr("action", v.Action)
		h.attr("data-events", v.EventsURL)
		h.attr("data-idle-label", v.Labels.Idle)
		h.attr("data-sending-label", v.Labels.Sending)
		if snap.ResetAfterMs > 0 {
			h.attr("data-reset-after", strconv.FormatInt(snap.ResetAfterMs, 10))
		}
		h.raw(`>`)

		h.raw(`<div class="grid grid-cols-1 md:grid-cols-2 gap-6">`)
		h.render(ctx, textInput(contact.FieldName, "Ime", "text", f.Name, v.Invalid.Has(contact.FieldName)))
		h.render(ctx, textInput(contact.FieldEmail, "Email", "email", f.Email, v.Invalid.Has(contact.FieldEmail)))
		h.raw(`</div>`)
		h.render(ctx, textInput(contact.FieldPhone, "Telefon", "tel", f.Phone, v.Invalid.Has(contact.FieldPhone)))
		h.render(ctx, serviceSelect(f.ServiceType, v.Invalid.Has(contact.FieldServiceType)))
		h.render(ctx, messageArea(f.Message, v.Invalid.Has(contact.FieldMessage)))

		h.raw(`<button type="submit" class="w-full"`)
		if snap.Disabled {
			h.raw(` disabled`)
		}
		h.attr("data-status", snap.Status.String())
		h.raw(`>`)
		h.text(snap.Label)
		h.raw(`</button></form>`)

		h.raw(`<script>`)
		h.raw(statusScript)
		h.raw(`</script>`)
		h.raw(`</div></section>`)
		return h.err
	})
}

func fieldLabel(h *htmlWriter, id, label string) {
	h.raw(`<label class="block mb-2 text-sm font-medium"`)
	h.attr("for", id)
	h.raw(`>`)
	h.text(label)
	h.raw(`</label>`)
}

func textInput(id, label, typ, value string, invalid bool) templ.Component {
	return templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		h := &htmlWriter{w: w}
		h.raw(`<div>`)
		fieldLabel(h, id, label)
		h.raw(`<input`)
		h.attr("type", typ)
		h.attr("id", id)
		h.attr("name", id)
		h.attr("value", value)
		h.raw(` required`)
		if invalid {
			h.raw(` aria-invalid="true"`)
		}
		h.raw(`></div>`)
		return h.err
	})
}

func serviceSelect(selected contact.ServiceType, invalid bool) templ.Component {
	return templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		h := &htmlWriter{w: w}
		h.raw(`<div>`)
		fieldLabel(h, contact.FieldServiceType, "Vrsta usluge")
		h.raw(`<select`)
		h.attr("id", contact.FieldServiceType)
		h.attr("name", contact.FieldServiceType)
		if invalid {
			h.raw(` aria-invalid="true"`)
		}
		h.raw(`><option value=""`)
		if selected == contact.ServiceUnset {
			h.raw(` selected`)
		}
		h.raw(`>Izaberite uslugu</option>`)
		for _, o := range contact.ServiceTypes() {
			h.raw(`<option`)
			h.attr("value", string(o.Value))
			if o.Value == selected {
				h.raw(` selected`)
			}
			h.raw(`>`)
			h.text(o.Label)
			h.raw(`</option>`)
		}
		h.raw(`</select></div>`)
		return h.err
	})
}

func messageArea(value string, invalid bool) templ.Component {
	return templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		h := &htmlWriter{w: w}
		h.raw(`<div>`)
		fieldLabel(h, contact.FieldMessage, "Poruka")
		h.raw(`<textarea`)
		h.attr("id", contact.FieldMessage)
		h.attr("name", contact.FieldMessage)
		h.raw(` required`)
		if invalid {
			h.raw(` aria-invalid="true"`)
		}
		h.raw(`>`)
		h.text(value)
		h.raw(`</textarea></div>`)
		return h.err
	})
}

// statusScript keeps the button in step with the server: it disables the
// button on submit, follows the status websocket and restores the idle
// label after the reset delay if the socket is unavailable.
const statusScript = `(function(){
var form=document.currentScript.parentElement.querySelector("form");
var btn=form.querySelector("button[type=submit]");
function apply(s){btn.textContent=s.label;btn.disabled=!!s.disabled;btn.dataset.status=s.status;}
var reset=parseInt(form.dataset.resetAfter||"0",10);
if(reset>0){setTimeout(function(){if(btn.dataset.status!=="sending"){apply({status:"idle",label:form.dataset.idleLabel,disabled:false});}},reset);}
form.addEventListener("submit",function(){apply({status:"sending",label:form.dataset.sendingLabel,disabled:true});});
if(window.WebSocket&&form.dataset.events){
var ws=new WebSocket((location.protocol==="https:"?"wss://":"ws://")+location.host+form.dataset.events);
ws.onmessage=function(e){try{apply(JSON.parse(e.data));}catch(_){}};
}
})();`
