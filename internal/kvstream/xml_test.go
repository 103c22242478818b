package kvstream

import (
	"encoding/xml"
	"testing"
)

const sampleXML = `<?xml version="1.0" encoding="UTF-8"?>
<KvalobsData>
  <station val="20001">
    <typeid val="501">
      <obstime val="2024-06-06 06:00:00">
        <tbtime val="2024-06-06 06:05:00">
          <sensor val="0">
            <level val="0">
              <kvdata paramid="106">
                <original>10</original>
                <corrected>10</corrected>
                <controlinfo>1000000000000000</controlinfo>
                <useinfo>9000000000000000</useinfo>
                <cfailed></cfailed>
              </kvdata>
            </level>
          </sensor>
        </tbtime>
      </obstime>
    </typeid>
  </station>
</KvalobsData>`

func TestDecodeEnvelope(t *testing.T) {
	var env envelope
	if err := xml.Unmarshal([]byte(sampleXML), &env); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}

	if len(env.Stations) != 1 || env.Stations[0].Val != 20001 {
		t.Fatalf("unexpected stations: %+v", env.Stations)
	}

	kv := env.Stations[0].Typeids[0].Obstimes[0].Tbtimes[0].Sensors[0].Levels[0].Kvdata[0]
	if kv.Paramid != 106 {
		t.Errorf("unexpected paramid: %d", kv.Paramid)
	}
	if kv.Original.Value == nil || *kv.Original.Value != 10 {
		t.Errorf("unexpected original: %+v", kv.Original.Value)
	}
	if kv.Cfailed.Value != nil {
		t.Errorf("expected cfailed to decode empty element as nil, got %+v", *kv.Cfailed.Value)
	}
}

func TestZeroableSensorLevelCollapseToNil(t *testing.T) {
	var env envelope
	if err := xml.Unmarshal([]byte(sampleXML), &env); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}

	sensor := env.Stations[0].Typeids[0].Obstimes[0].Tbtimes[0].Sensors[0]
	level := sensor.Levels[0]
	if sensor.Val.Value != nil {
		t.Errorf("sensor val=0 should decode to nil, got %+v", *sensor.Val.Value)
	}
	if level.Val.Value != nil {
		t.Errorf("level val=0 should decode to nil, got %+v", *level.Val.Value)
	}
}

func TestZeroableNonZeroValueKept(t *testing.T) {
	type wrapper struct {
		XMLName xml.Name    `xml:"sensor"`
		Val     zeroableInt `xml:"val,attr"`
	}
	var w wrapper
	if err := xml.Unmarshal([]byte(`<sensor val="5"></sensor>`), &w); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if w.Val.Value == nil || *w.Val.Value != 5 {
		t.Fatalf("expected 5, got %+v", w.Val.Value)
	}
}
