package kvstream

import (
	"encoding/xml"
	"strconv"
	"strings"
)

// zeroableInt decodes an XML attribute to an optional int32, treating
// "0" and "" (and a missing attribute, handled by the caller) as
// absent — mirroring kvkafka.rs's zero_to_none: "0 is the default for
// kvalobs, but through obsinn it's actually just missing."
type zeroableInt struct {
	Value *int32
}

func (z *zeroableInt) UnmarshalXMLAttr(attr xml.Attr) error {
	v := strings.TrimSpace(attr.Value)
	if v == "" || v == "0" {
		z.Value = nil
		return nil
	}
	n, err := strconv.ParseInt(v, 10, 32)
	if err != nil {
		return err
	}
	i32 := int32(n)
	z.Value = &i32
	return nil
}

// optionalString decodes element text to a pointer, treating an empty
// or missing element as absent, mirroring kvkafka.rs's `optional`.
type optionalString struct {
	Value *string
}

func (o *optionalString) UnmarshalXML(d *xml.Decoder, start xml.StartElement) error {
	var s string
	if err := d.DecodeElement(&s, &start); err != nil {
		return err
	}
	if s == "" {
		o.Value = nil
		return nil
	}
	o.Value = &s
	return nil
}

// optionalFloat decodes element text to a *float32, empty/missing -> nil.
type optionalFloat struct {
	Value *float32
}

func (o *optionalFloat) UnmarshalXML(d *xml.Decoder, start xml.StartElement) error {
	var s string
	if err := d.DecodeElement(&s, &start); err != nil {
		return err
	}
	s = strings.TrimSpace(s)
	if s == "" {
		o.Value = nil
		return nil
	}
	f, err := strconv.ParseFloat(s, 32)
	if err != nil {
		return err
	}
	v := float32(f)
	o.Value = &v
	return nil
}

// optionalInt decodes element text to a *int32, empty/missing -> nil.
type optionalInt struct {
	Value *int32
}

func (o *optionalInt) UnmarshalXML(d *xml.Decoder, start xml.StartElement) error {
	var s string
	if err := d.DecodeElement(&s, &start); err != nil {
		return err
	}
	s = strings.TrimSpace(s)
	if s == "" {
		o.Value = nil
		return nil
	}
	n, err := strconv.ParseInt(s, 10, 32)
	if err != nil {
		return err
	}
	v := int32(n)
	o.Value = &v
	return nil
}
