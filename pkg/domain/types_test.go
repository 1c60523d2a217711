package domain

import "testing"

func TestParseChatRef(t *testing.T) {
	cases := []struct {
		raw     string
		numeric bool
		id      int64
		handle  string
	}{
		{"-1001234567890", true, -1001234567890, ""},
		{"42", true, 42, ""},
		{" 42 ", true, 42, ""},
		{"@newsroom", false, 0, "@newsroom"},
		{"t.me/joinchat/abc", false, 0, "t.me/joinchat/abc"},
		{"12abc", false, 0, "12abc"},
	}
	for _, tc := range cases {
		ref := ParseChatRef(tc.raw)
		if ref.IsNumeric() != tc.numeric {
			t.Fatalf("ParseChatRef(%q).IsNumeric() = %v, want %v", tc.raw, ref.IsNumeric(), tc.numeric)
		}
		if tc.numeric && ref.Numeric != tc.id {
			t.Fatalf("ParseChatRef(%q).Numeric = %d, want %d", tc.raw, ref.Numeric, tc.id)
		}
		if !tc.numeric && ref.Handle != tc.handle {
			t.Fatalf("ParseChatRef(%q).Handle = %q, want %q", tc.raw, ref.Handle, tc.handle)
		}
	}
}

func TestScanFilterWants(t *testing.T) {
	f := ScanFilter{Categories: map[MediaCategory]bool{CategoryPhoto: true}}
	if !f.Wants(CategoryPhoto) {
		t.Fatalf("Wants(photo) = false, want true")
	}
	if f.Wants(CategoryVideo) {
		t.Fatalf("Wants(video) = true, want false")
	}
}
