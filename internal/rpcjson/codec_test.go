package rpcjson

import "testing"

type sample struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

func TestCodec_RoundTrip(t *testing.T) {
	c := codec{}

	in := &sample{Name: "device-1", Count: 3}
	data, err := c.Marshal(in)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	var out sample
	if err := c.Unmarshal(data, &out); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if out != *in {
		t.Errorf("roundtrip = %+v, want %+v", out, *in)
	}
}

func TestCodec_Name(t *testing.T) {
	if (codec{}).Name() != "json" {
		t.Errorf("Name() = %q, want json", (codec{}).Name())
	}
}

func TestCodec_UnmarshalError(t *testing.T) {
	c := codec{}
	var out sample
	if err := c.Unmarshal([]byte("{not json"), &out); err == nil {
		t.Error("expected error for malformed JSON")
	}
}
