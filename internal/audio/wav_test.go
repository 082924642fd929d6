package audio

import (
	"bytes"
	"encoding/binary"
	"testing"
)

func TestEncodeWAVHeader(t *testing.T) {
	var buf bytes.Buffer
	samples := make([]float32, 100)

	if err := EncodeWAV(&buf, samples, 16000); err != nil {
		t.Fatal(err)
	}

	data := buf.Bytes()
	if len(data) != wavHeaderSize+200 {
		t.Fatalf("expected %d bytes, got %d", wavHeaderSize+200, len(data))
	}
	if string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		t.Error("missing RIFF/WAVE magic")
	}
	if rate := binary.LittleEndian.Uint32(data[24:28]); rate != 16000 {
		t.Errorf("expected rate 16000, got %d", rate)
	}
	if size := binary.LittleEndian.Uint32(data[40:44]); size != 200 {
		t.Errorf("expected data size 200, got %d", size)
	}
}

func TestSamplesToPCM16(t *testing.T) {
	pcm := SamplesToPCM16([]float32{0, 1, -1})

	if v := int16(binary.LittleEndian.Uint16(pcm[0:2])); v != 0 {
		t.Errorf("silence should be 0, got %d", v)
	}
	if v := int16(binary.LittleEndian.Uint16(pcm[2:4])); v != 32767 {
		t.Errorf("full scale should be 32767, got %d", v)
	}
	if v := int16(binary.LittleEndian.Uint16(pcm[4:6])); v != -32767 {
		t.Errorf("negative full scale should be -32767, got %d", v)
	}
}

func TestSamplesToPCM16Clips(t *testing.T) {
	pcm := SamplesToPCM16([]float32{2.5, -3.0})

	if v := int16(binary.LittleEndian.Uint16(pcm[0:2])); v != 32767 {
		t.Errorf("over-range should clip to 32767, got %d", v)
	}
	if v := int16(binary.LittleEndian.Uint16(pcm[2:4])); v != -32767 {
		t.Errorf("under-range should clip to -32767, got %d", v)
	}
}
