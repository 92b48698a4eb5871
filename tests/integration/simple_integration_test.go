package integration

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"testing"
	"time"

	errs "locscraper/pkg/errors"
	"locscraper/pkg/loc"
	"locscraper/pkg/logger"
)

// TestMockServerServesListing sanity-checks the mock host itself before
// the heavier scenarios lean on it.
func TestMockServerServesListing(t *testing.T) {
	helper := NewTestHelper(t)
	srv := helper.SetupMockServer()

	srv.SetPage(1, listingPage(recordJSON("rec-1"), recordJSON("rec-2")))

	resp, err := http.Get(srv.ListingURL() + "?fo=json&sp=1")
	if err != nil {
		t.Fatalf("Failed to fetch listing: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected status 200, got %d", resp.StatusCode)
	}

	var page struct {
		Results []json.RawMessage `json:"results"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		t.Fatalf("Failed to decode listing: %v", err)
	}
	if len(page.Results) != 2 {
		t.Errorf("Expected 2 results, got %d", len(page.Results))
	}
}

// TestClientFetchPageAgainstMock runs the API client against the mock
// host and checks the page extraction.
func TestClientFetchPageAgainstMock(t *testing.T) {
	helper := NewTestHelper(t)
	srv := helper.SetupMockServer()

	srv.SetPage(1, listingPage(recordJSON("rec-1"), recordJSON("rec-2"), recordJSON("rec-3")))

	client := loc.NewClient(srv.ListingURL(), 10*time.Second, 10*time.Second, logger.NewTestLogger())

	page, err := client.FetchPage(1, 25)
	if err != nil {
		t.Fatalf("FetchPage failed: %v", err)
	}
	if len(page.Records) != 3 {
		t.Errorf("Expected 3 records, got %d", len(page.Records))
	}
	if !page.Short(25) {
		t.Errorf("3 of 25 requested records should count as a short page")
	}

	empty, err := client.FetchPage(2, 25)
	if err != nil {
		t.Fatalf("FetchPage for an unconfigured page failed: %v", err)
	}
	if len(empty.Records) != 0 {
		t.Errorf("Unconfigured page should be empty, got %d records", len(empty.Records))
	}
}

// TestClientProbeAgainstMock exercises the probe path end to end: a
// cooperative host, a HEAD-rejecting host, and a dead URL.
func TestClientProbeAgainstMock(t *testing.T) {
	helper := NewTestHelper(t)
	srv := helper.SetupMockServer()

	lastMod := time.Date(2023, 6, 1, 12, 0, 0, 0, time.UTC)
	body := []byte("probe-target-bytes")

	plainURL := srv.AddAsset("/probe/plain.jpg", &AssetFixture{
		Body:         body,
		ContentType:  "image/jpeg",
		LastModified: lastMod,
	})
	guardedURL := srv.AddAsset("/probe/guarded.jpg", &AssetFixture{
		Body:        body,
		ContentType: "image/jpeg",
		RejectHead:  true,
	})

	client := loc.NewClient(srv.ListingURL(), 10*time.Second, 10*time.Second, logger.NewTestLogger())

	t.Run("head probe", func(t *testing.T) {
		info := client.Probe(plainURL)
		if !info.HasSize() || info.Size != int64(len(body)) {
			t.Errorf("Expected size %d, got %d", len(body), info.Size)
		}
		if !info.HasLastMod() || !info.LastMod.Equal(lastMod) {
			t.Errorf("Expected last modified %v, got %v", lastMod, info.LastMod)
		}
		if info.ContentType != "image/jpeg" {
			t.Errorf("Expected image/jpeg, got %q", info.ContentType)
		}
	})

	t.Run("ranged fallback on 405", func(t *testing.T) {
		info := client.Probe(guardedURL)
		if !info.HasSize() || info.Size != int64(len(body)) {
			t.Errorf("Ranged fallback should learn the full size %d from Content-Range, got %d", len(body), info.Size)
		}
		if n := srv.AssetBodyFetches("/probe/guarded.jpg"); n != 0 {
			t.Errorf("Probe must not transfer the body, counted %d full fetches", n)
		}
	})

	t.Run("dead URL is all absent", func(t *testing.T) {
		info := client.Probe(srv.URL() + "/probe/nothing-here.jpg")
		if info.HasSize() || info.HasLastMod() || info.ContentType != "" {
			t.Errorf("Probe of a missing asset should report nothing, got %+v", info)
		}
	})
}

// TestClientFetchAssetRoundTrip streams one asset body off the mock host.
func TestClientFetchAssetRoundTrip(t *testing.T) {
	helper := NewTestHelper(t)
	srv := helper.SetupMockServer()

	body := []byte("full-asset-body")
	assetURL := srv.AddAsset("/fetch/asset.jpg", &AssetFixture{
		Body:        body,
		ContentType: "image/jpeg",
	})

	client := loc.NewClient(srv.ListingURL(), 10*time.Second, 10*time.Second, logger.NewTestLogger())

	rc, info, err := client.FetchAsset(assetURL)
	if err != nil {
		t.Fatalf("FetchAsset failed: %v", err)
	}
	defer rc.Close()

	got, err := io.ReadAll(rc)
	if err != nil {
		t.Fatalf("Failed to read asset body: %v", err)
	}
	if string(got) != string(body) {
		t.Errorf("Body mismatch: expected %q, got %q", body, got)
	}
	if info.ContentType != "image/jpeg" {
		t.Errorf("Expected image/jpeg, got %q", info.ContentType)
	}
}

// TestHarvestMalformedListingFailsFast runs the whole stack into a
// structurally broken page: the run aborts with the malformed-page signal
// after a single attempt, since retrying cannot fix the shape.
func TestHarvestMalformedListingFailsFast(t *testing.T) {
	helper := NewTestHelper(t)
	srv := helper.SetupMockServer()

	srv.SetPage(1, `{"results": {"not": "an array"}}`)

	_, _, err := helper.RunHarvest(helper.HarvestConfig(helper.OutputDir("mirror")))
	if !errors.Is(err, errs.ErrMalformedPage) {
		t.Fatalf("Expected the malformed page signal, got %v", err)
	}
	if hits := srv.ListingHits(1); hits != 1 {
		t.Errorf("Malformed page fetched %d times, expected no retry", hits)
	}
}
