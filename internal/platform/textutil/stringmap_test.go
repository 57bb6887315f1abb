package textutil

import (
	"reflect"
	"testing"
)

func TestNormalizeStringMap(t *testing.T) {
	t.Run("trims keys and values", func(t *testing.T) {
		input := map[string]string{
			" sku ":  " content ",
			"media":  " commerce ",
			"empty":  " ",
			" ":      "ignored",
			"":       "ignore",
		}

		expected := map[string]string{
			"sku":   "content",
			"media": "commerce",
			"empty": "",
		}

		actual := NormalizeStringMap(input)
		if !reflect.DeepEqual(actual, expected) {
			t.Fatalf("expected %#v got %#v", expected, actual)
		}
	})

	t.Run("returns nil for nil or empty input", func(t *testing.T) {
		if NormalizeStringMap(nil) != nil {
			t.Fatalf("expected nil for nil input")
		}
		if NormalizeStringMap(map[string]string{}) != nil {
			t.Fatalf("expected nil for empty map")
		}
	})
}

func TestFoldStringMap(t *testing.T) {
	input := map[string]string{
		" Stock ": " Commerce ",
		"Price":   "COMMERCE",
		"":        "ignored",
	}

	expected := map[string]string{
		"stock": "commerce",
		"price": "commerce",
	}

	actual := FoldStringMap(input)
	if !reflect.DeepEqual(actual, expected) {
		t.Fatalf("expected %#v got %#v", expected, actual)
	}

	if FoldStringMap(nil) != nil {
		t.Fatalf("expected nil for nil input")
	}
}
