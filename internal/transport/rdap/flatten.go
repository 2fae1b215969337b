package rdap

import (
	"strings"

	"github.com/tidwall/gjson"

	"github.com/kailas-cloud/ipwarehouse/internal/domain/document"
)

// networkFields are copied verbatim from the top-level network object.
var networkFields = []string{
	"handle", "startAddress", "endAddress", "ipVersion", "name", "type", "parentHandle", "objectClassName",
}

// Flatten turns an RDAP IP network response into one "root" document followed by one "child"
// document per entity. Only top-level entities whose objectClassName is "entity" are followed;
// their nested entities are all followed.
func Flatten(res gjson.Result) []document.Document {
	var root document.Document
	root.Set("class", document.StringValue("root"))
	for _, f := range networkFields {
		if v := res.Get(f); v.Exists() {
			root.Set(f, scalar(v))
		}
	}
	setEvents(&root, res.Get("events"))
	if status := res.Get("status"); status.IsArray() {
		root.Set("status", document.StringValue(joinStrings(status, ",")))
	}

	docs := []document.Document{root}
	parent := res.Get("handle").String()
	for _, e := range res.Get("entities").Array() {
		if e.Get("objectClassName").String() != "entity" {
			continue
		}
		docs = appendEntity(docs, e, parent)
	}
	return docs
}

func appendEntity(docs []document.Document, e gjson.Result, parent string) []document.Document {
	var d document.Document
	d.Set("class", document.StringValue("child"))
	d.Set("parentHandle", document.StringValue(parent))
	if h := e.Get("handle"); h.Exists() {
		d.Set("handle", scalar(h))
	}
	if vcard := e.Get("vcardArray.1"); vcard.IsArray() {
		setVCard(&d, vcard)
	}
	if roles := e.Get("roles"); roles.IsArray() {
		d.Set("roles", document.StringValue(joinStrings(roles, ",")))
	}
	setEvents(&d, e.Get("events"))

	docs = append(docs, d)
	handle := e.Get("handle").String()
	for _, child := range e.Get("entities").Array() {
		docs = appendEntity(docs, child, handle)
	}
	return docs
}

// setEvents adds event_<action> = date, spaces in the action replaced by underscores.
func setEvents(d *document.Document, events gjson.Result) {
	for _, ev := range events.Array() {
		action, date := ev.Get("eventAction"), ev.Get("eventDate")
		if !action.Exists() || !date.Exists() {
			continue
		}
		d.Set("event_"+strings.ReplaceAll(action.String(), " ", "_"), scalar(date))
	}
}

// setVCard adds vcard_<property> per jCard property ["name", {params}, "type", value...].
// Addresses use their label parameter when present, otherwise their components joined by newlines.
func setVCard(d *document.Document, props gjson.Result) {
	for _, p := range props.Array() {
		name := p.Get("0").String()
		if name == "" {
			continue
		}
		var value string
		switch v := p.Get("3"); {
		case name == "adr" && p.Get("1.label").Exists():
			value = p.Get("1.label").String()
		case name == "adr":
			value = joinStrings(v, "\n")
		case v.IsArray():
			value = joinStrings(v, ",")
		default:
			value = v.String()
		}
		d.Set("vcard_"+name, document.StringValue(value))
	}
}

func joinStrings(arr gjson.Result, sep string) string {
	items := arr.Array()
	parts := make([]string, len(items))
	for i, it := range items {
		parts[i] = it.String()
	}
	return strings.Join(parts, sep)
}

func scalar(v gjson.Result) document.Value {
	switch v.Type {
	case gjson.Number:
		return document.RawNumber(v.Raw)
	case gjson.True, gjson.False:
		return document.BoolValue(v.Bool())
	case gjson.Null:
		return document.NullValue()
	default:
		return document.StringValue(v.String())
	}
}
