// Package kvstream is the XML Stream Consumer (C7): it reads a
// partitioned message stream, deserialises the nested envelope
// documented in spec.md §4.6, and fans out individual observations into
// the flags writer. The envelope shape and NULL-coercion rules are
// recovered from original_source/ingestion/src/kvkafka.rs.
package kvstream

import "encoding/xml"

// envelope is KvalobsData -> station* -> typeid* -> obstime* -> tbtime*
// -> sensor* -> level* -> kvdata*, per §4.6.
type envelope struct {
	XMLName  xml.Name  `xml:"KvalobsData"`
	Stations []station `xml:"station"`
}

type station struct {
	Val     int32    `xml:"val,attr"`
	Typeids []typeid  `xml:"typeid"`
}

type typeid struct {
	Val      int32     `xml:"val,attr"`
	Obstimes []obstime `xml:"obstime"`
}

type obstime struct {
	Val     string    `xml:"val,attr"`
	Tbtimes []tbtime  `xml:"tbtime"`
}

type tbtime struct {
	Val     string   `xml:"val,attr"`
	Sensors []sensor `xml:"sensor"`
}

type sensor struct {
	Val    zeroableInt `xml:"val,attr"`
	Levels []level     `xml:"level"`
}

type level struct {
	Val    zeroableInt `xml:"val,attr"`
	Kvdata []kvdata    `xml:"kvdata"`
}

// kvdata mirrors original_source/ingestion/src/kvkafka.rs's Kvdata:
// every child element deserializes an empty string to absent (handled
// in the UnmarshalXML method of each optional* type in optional.go).
type kvdata struct {
	Paramid     int32          `xml:"paramid,attr"`
	Original    optionalFloat  `xml:"original"`
	Corrected   optionalFloat  `xml:"corrected"`
	Controlinfo optionalString `xml:"controlinfo"`
	Useinfo     optionalString `xml:"useinfo"`
	Cfailed     optionalInt    `xml:"cfailed"`
}
