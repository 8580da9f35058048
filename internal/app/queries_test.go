package app_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"stayfinder/internal/app"
	"stayfinder/internal/domain"
)

func TestReload_SwapsSnapshotAndKeepsOldOnError(t *testing.T) {
	src := &fakeSource{props: sampleCatalog()}
	c := app.NewCatalogService(src, nil, nil, time.Minute)

	if n := len(c.Snapshot().Properties); n != 0 {
		t.Fatalf("expected empty initial snapshot, got %d", n)
	}
	snap, err := c.Reload(context.Background())
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	if len(snap.Properties) != 3 || snap.Search.Len() != 3 {
		t.Fatalf("unexpected snapshot: %d props, %d indexed", len(snap.Properties), snap.Search.Len())
	}

	src.err = errBoom
	if _, err := c.Reload(context.Background()); !errors.Is(err, errBoom) {
		t.Fatalf("expected wrapped boom, got %v", err)
	}
	if c.Snapshot() != snap {
		t.Fatalf("failed reload must keep the previous snapshot")
	}
}

func TestGetProperty_SnapshotOnly(t *testing.T) {
	c := app.NewCatalogService(&fakeSource{props: sampleCatalog()}, nil, nil, time.Minute)
	if _, err := c.Reload(context.Background()); err != nil {
		t.Fatalf("err: %v", err)
	}

	p, err := c.GetProperty(context.Background(), " B ")
	if err != nil || p.Location != "Aspen" {
		t.Fatalf("unexpected: %+v %v", p, err)
	}
	if _, err := c.GetProperty(context.Background(), "nope"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if _, err := c.GetProperty(context.Background(), ""); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
}

func TestGetProperty_CacheMissThenHit(t *testing.T) {
	repo := &fakeRepo{byID: map[string]domain.Property{
		"42": {ID: "42", Location: "Lisbon", NightlyPrice: 90},
	}}
	cache := &fakeCache{}
	c := app.NewCatalogService(&fakeSource{}, repo, cache, 10*time.Minute)

	// Miss (first time, populates cache)
	p, err := c.GetProperty(context.Background(), "42")
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	if p.Location != "Lisbon" {
		t.Fatalf("unexpected property: %+v", p)
	}

	// Mutate repo to ensure second read indeed comes from cache
	repo.byID["42"] = domain.Property{ID: "42", Location: "SHOULD NOT SEE THIS"}

	p2, err := c.GetProperty(context.Background(), "42")
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	if p2.Location != "Lisbon" {
		t.Fatalf("expected cached location, got %s", p2.Location)
	}
}

func TestGetProperty_RepoMissFallsBackToSnapshot(t *testing.T) {
	c := app.NewCatalogService(&fakeSource{props: sampleCatalog()}, &fakeRepo{}, nil, time.Minute)
	if _, err := c.Reload(context.Background()); err != nil {
		t.Fatalf("err: %v", err)
	}
	p, err := c.GetProperty(context.Background(), "C")
	if err != nil || p.Location != "Miami Beach" {
		t.Fatalf("unexpected: %+v %v", p, err)
	}
}

func TestListProperties_Paging(t *testing.T) {
	c := app.NewCatalogService(&fakeSource{props: sampleCatalog()}, nil, nil, time.Minute)
	if _, err := c.Reload(context.Background()); err != nil {
		t.Fatalf("err: %v", err)
	}

	cases := []struct {
		limit, offset int
		want          []string
	}{
		{2, 0, []string{"A", "B"}},
		{2, 2, []string{"C"}},
		{0, 1, []string{"B", "C"}},
		{5, 10, nil},
		{1, -3, []string{"A"}},
	}
	for _, tc := range cases {
		pg := c.ListProperties(tc.limit, tc.offset)
		if pg.Total != 3 {
			t.Fatalf("total: %d", pg.Total)
		}
		if len(pg.Items) != len(tc.want) {
			t.Fatalf("limit=%d offset=%d: got %d items", tc.limit, tc.offset, len(pg.Items))
		}
		for i, id := range tc.want {
			if pg.Items[i].ID != id {
				t.Fatalf("limit=%d offset=%d: item %d = %s, want %s", tc.limit, tc.offset, i, pg.Items[i].ID, id)
			}
		}
	}
}

func TestSearch_UsesSnapshotIndex(t *testing.T) {
	c := app.NewCatalogService(&fakeSource{props: sampleCatalog()}, nil, nil, time.Minute)
	if _, err := c.Reload(context.Background()); err != nil {
		t.Fatalf("err: %v", err)
	}
	got := c.Search("cozy ski cabin with jacuzzi", 1)
	if len(got) != 1 || got[0].Property.ID != "B" {
		t.Fatalf("expected B first, got %+v", got)
	}
	if got[0].SemanticScore <= 0 {
		t.Fatalf("expected positive semantic score")
	}
}
