package input

import (
	"errors"
	"testing"
)

func FuzzJSONDecoder(f *testing.F) {
	seeds := []string{
		`{"kind":"request","url":"https://a.example/x","tabId":3}`,
		`{"kind":"headers","url":"https://a.example/","headers":[{"name":"A","value":"b"}]}`,
		`{"type":"THREAT_DETECTED","threatType":"KEYLOGGER"}`,
		`{"type":"USER_GESTURE"}`,
		`{"kind":"dom","observation":{"kind":"sink_write","sink":"innerHTML","content":"<script>"}}`,
		`{"kind":"request","tabId":-1,"url":""}`,
		`{"tabId":1e309}`,
		``,
		`null`,
		`[]`,
	}
	for _, s := range seeds {
		f.Add([]byte(s))
	}

	d := NewJSONDecoder()
	f.Fuzz(func(t *testing.T, data []byte) {
		sig, err := d.Decode(data)
		if err != nil {
			if !errors.Is(err, ErrInvalidSignal) {
				t.Fatalf("unexpected error type: %v", err)
			}
			if sig != nil {
				t.Fatalf("signal returned alongside error")
			}
			return
		}
		if sig == nil {
			return
		}
		encoded, err := Encode(sig)
		if err != nil {
			t.Fatalf("decoded signal does not encode: %v", err)
		}
		// HTML escaping can push a re-encoded signal past the size cap.
		if _, err := d.Decode(encoded); err != nil && len(encoded) <= MaxSignalLength {
			t.Fatalf("re-decode failed: %v", err)
		}
	})
}
