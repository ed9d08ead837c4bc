package identity

import "testing"

func TestCanonicalListingURL(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{
			"https://www.facebook.com/marketplace/item/123456789/?ref=search&tracking=abc",
			"https://www.facebook.com/marketplace/item/123456789",
		},
		{
			"http://WWW.Facebook.com/marketplace/item/42#photos",
			"https://www.facebook.com/marketplace/item/42",
		},
		{"  https://example.com/  ", "https://example.com/"},
		{"", ""},
		{"not a url", "not a url"},
	}

	for _, tt := range tests {
		if got := CanonicalListingURL(tt.in); got != tt.want {
			t.Errorf("CanonicalListingURL(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestListingIDFromURL(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"https://www.facebook.com/marketplace/item/987654321/", "987654321"},
		{"https://www.facebook.com/marketplace/item/55?ref=x", "55"},
		{"https://www.facebook.com/marketplace/nyc/search?query=bike", ""},
	}

	for _, tt := range tests {
		if got := ListingIDFromURL(tt.in); got != tt.want {
			t.Errorf("ListingIDFromURL(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestValidateSearchURL(t *testing.T) {
	valid := []string{
		"https://www.facebook.com/marketplace/nyc/search?query=bike",
		"http://localhost:8080/search",
	}
	for _, u := range valid {
		if err := ValidateSearchURL(u); err != nil {
			t.Errorf("ValidateSearchURL(%q) unexpected error: %v", u, err)
		}
	}

	invalid := []string{"", "facebook.com/marketplace", "ftp://example.com/x", "https://"}
	for _, u := range invalid {
		if err := ValidateSearchURL(u); err == nil {
			t.Errorf("ValidateSearchURL(%q) expected error", u)
		}
	}
}
