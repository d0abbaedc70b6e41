package layout

import (
	"encoding/base64"
	"errors"
	"reflect"
	"testing"

	"page-drm-service/internal/domain"
)

// encodeDescriptor は平文を固定鍵でXORしてbase64化する。
func encodeDescriptor(plain []byte) string {
	key := []byte("3141592653589793")
	out := make([]byte, len(plain))
	for i, b := range plain {
		out[i] = b ^ key[i%len(key)]
	}
	return base64.StdEncoding.EncodeToString(out)
}

func TestDecodeRowLayout_Success(t *testing.T) {
	blocks, err := DecodeRowLayout(encodeDescriptor([]byte("#v4|0-120|120-80")))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []domain.RowBlock{{Offset: 0, Height: 120}, {Offset: 120, Height: 80}}
	if !reflect.DeepEqual(blocks, want) {
		t.Errorf("want %v, got %v", want, blocks)
	}
}

func TestDecodeRowLayout_PreservesOrder(t *testing.T) {
	blocks, err := DecodeRowLayout(encodeDescriptor([]byte("#v4|300-100|0-150|150-150")))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []domain.RowBlock{{Offset: 300, Height: 100}, {Offset: 0, Height: 150}, {Offset: 150, Height: 150}}
	if !reflect.DeepEqual(blocks, want) {
		t.Errorf("want %v, got %v", want, blocks)
	}
}

func TestDecodeRowLayout_SkipsMalformedField(t *testing.T) {
	blocks, err := DecodeRowLayout(encodeDescriptor([]byte("#v4|0-50|foo-60|60-30")))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []domain.RowBlock{{Offset: 0, Height: 50}, {Offset: 60, Height: 30}}
	if !reflect.DeepEqual(blocks, want) {
		t.Errorf("want %v, got %v", want, blocks)
	}
}

func TestDecodeRowLayout_SkipsWrongComponentCount(t *testing.T) {
	blocks, err := DecodeRowLayout(encodeDescriptor([]byte("#v4|0-50|1-2-3|7||50-10|")))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []domain.RowBlock{{Offset: 0, Height: 50}, {Offset: 50, Height: 10}}
	if !reflect.DeepEqual(blocks, want) {
		t.Errorf("want %v, got %v", want, blocks)
	}
}

func TestDecodeRowLayout_IntegerParseFailure(t *testing.T) {
	for _, plain := range []string{"#v4|0-50|12x-60", "#v4|0-5y", "#v4|99999999999-1"} {
		_, err := DecodeRowLayout(encodeDescriptor([]byte(plain)))
		if !errors.Is(err, domain.ErrIntegerParse) {
			t.Errorf("%q: want ErrIntegerParse, got %v", plain, err)
		}
	}
}

func TestDecodeRowLayout_BadMagic(t *testing.T) {
	_, err := DecodeRowLayout("bm90YSNkcm0=")
	if !errors.Is(err, domain.ErrBadMagic) {
		t.Errorf("want ErrBadMagic, got %v", err)
	}

	_, err = DecodeRowLayout(encodeDescriptor([]byte("#v3|0-10")))
	if !errors.Is(err, domain.ErrBadMagic) {
		t.Errorf("want ErrBadMagic, got %v", err)
	}
}

func TestDecodeRowLayout_NoBlocks(t *testing.T) {
	for _, plain := range []string{"#v4|", "#v4|foo|bar-baz"} {
		_, err := DecodeRowLayout(encodeDescriptor([]byte(plain)))
		if !errors.Is(err, domain.ErrTruncatedInput) {
			t.Errorf("%q: want ErrTruncatedInput, got %v", plain, err)
		}
	}
}

func TestDecodeRowLayout_InvalidUTF8(t *testing.T) {
	_, err := DecodeRowLayout(encodeDescriptor([]byte("\xff\xfe#v4|0-1")))
	if !errors.Is(err, domain.ErrMalformedEncoding) {
		t.Errorf("want ErrMalformedEncoding, got %v", err)
	}
}

func TestDecodeRowLayout_InvalidBase64(t *testing.T) {
	_, err := DecodeRowLayout("#v4|0-1")
	if !errors.Is(err, domain.ErrMalformedEncoding) {
		t.Errorf("want ErrMalformedEncoding, got %v", err)
	}
}

func TestDecodeRowLayout_StripsNewlinesAndWhitespace(t *testing.T) {
	token := encodeDescriptor([]byte("#v4|0-120|120-80|200-40"))
	folded := "  " + token[:8] + "\n" + token[8:20] + "\r\n" + token[20:] + "\n "

	blocks, err := DecodeRowLayout(folded)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(blocks) != 3 {
		t.Errorf("want 3 blocks, got %d", len(blocks))
	}
}

func TestEncodeRowLayout_RoundTrip(t *testing.T) {
	want := []domain.RowBlock{{Offset: 40, Height: 40}, {Offset: 0, Height: 40}, {Offset: 80, Height: 7}}

	got, err := DecodeRowLayout(EncodeRowLayout(want))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("want %v, got %v", want, got)
	}
}

func TestEncodeRowLayout_MatchesWireFormat(t *testing.T) {
	blocks := []domain.RowBlock{{Offset: 0, Height: 120}, {Offset: 120, Height: 80}}
	want := encodeDescriptor([]byte("#v4|0-120|120-80"))

	if got := EncodeRowLayout(blocks); got != want {
		t.Errorf("want %s, got %s", want, got)
	}
}

func TestRegions_RunningCursor(t *testing.T) {
	blocks := []domain.RowBlock{{Offset: 200, Height: 100}, {Offset: 0, Height: 200}, {Offset: 300, Height: 50}}

	want := []domain.Region{
		{SX: 0, SY: 0, DX: 0, DY: 200, Width: 0, Height: 100},
		{SX: 0, SY: 100, DX: 0, DY: 0, Width: 0, Height: 200},
		{SX: 0, SY: 300, DX: 0, DY: 300, Width: 0, Height: 50},
	}
	if got := Regions(blocks); !reflect.DeepEqual(got, want) {
		t.Errorf("want %v, got %v", want, got)
	}
}

func TestRegions_Empty(t *testing.T) {
	if got := Regions(nil); len(got) != 0 {
		t.Errorf("want 0 regions, got %d", len(got))
	}
}
