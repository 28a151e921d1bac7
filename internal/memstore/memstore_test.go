package memstore

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/justestif/artist-pulse/internal/model"
	"github.com/justestif/artist-pulse/internal/persist"
)

func TestWithTx_PanicRollsBack(t *testing.T) {
	s := New()

	func() {
		defer func() {
			if recover() == nil {
				t.Error("panic was swallowed")
			}
		}()
		s.WithTx(context.Background(), func(tx persist.Tx) error {
			if _, err := tx.UpsertArtist(context.Background(), &model.Artist{Name: "Dua Lipa", Slug: "dua-lipa"}); err != nil {
				t.Fatal(err)
			}
			panic("boom")
		})
	}()

	if c := s.Counts(); c.Artists != 0 {
		t.Errorf("Artists = %d after panic, want 0", c.Artists)
	}

	// The lock must have been released.
	if err := s.WithTx(context.Background(), func(tx persist.Tx) error { return nil }); err != nil {
		t.Fatal(err)
	}
}

func TestWithTx_CanceledContext(t *testing.T) {
	s := New()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := s.WithTx(ctx, func(tx persist.Tx) error {
		t.Error("fn ran with canceled context")
		return nil
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("WithTx() = %v, want context.Canceled", err)
	}
}

func TestLinkRequiresTrack(t *testing.T) {
	s := New()
	err := s.WithTx(context.Background(), func(tx persist.Tx) error {
		id, err := tx.UpsertArtist(context.Background(), &model.Artist{Name: "Dua Lipa", Slug: "dua-lipa"})
		if err != nil {
			return err
		}
		return tx.LinkTrack(context.Background(), model.ArtistTrack{ArtistID: id, Platform: model.PlatformSpotify, TrackID: "missing"})
	})
	if err == nil {
		t.Fatal("linking a missing track succeeded")
	}
	if c := s.Counts(); c.Artists != 0 {
		t.Errorf("Artists = %d, want rollback", c.Artists)
	}
}

func TestUniqueIdentity(t *testing.T) {
	s := New()
	ctx := context.Background()

	var first uuid.UUID
	err := s.WithTx(ctx, func(tx persist.Tx) error {
		var err error
		first, err = tx.UpsertArtist(ctx, &model.Artist{Name: "Nirvana", Slug: "nirvana"})
		if err != nil {
			return err
		}
		return tx.UpsertPlatformIDs(ctx, first, []model.PlatformID{{Platform: model.PlatformSpotify, PlatformID: "6olE6TJLqED3rqDCT0FyPh"}})
	})
	if err != nil {
		t.Fatal(err)
	}

	err = s.WithTx(ctx, func(tx persist.Tx) error {
		if _, err := tx.UpsertArtist(ctx, &model.Artist{Name: "Nirvana", Slug: "nirvana"}); err == nil {
			t.Error("inserted a second artist under a taken slug")
		}

		second, err := tx.UpsertArtist(ctx, &model.Artist{Name: "Nirvana", Slug: "nirvana-0clieyf0"})
		if err != nil {
			return err
		}
		if err := tx.UpsertPlatformIDs(ctx, second, []model.PlatformID{{Platform: model.PlatformSpotify, PlatformID: "6olE6TJLqED3rqDCT0FyPh"}}); err == nil {
			t.Error("two artists share a spotify id")
		}

		owner, err := tx.ArtistByPlatformID(ctx, model.PlatformSpotify, "6olE6TJLqED3rqDCT0FyPh")
		if err != nil {
			return err
		}
		if owner.ID != first {
			t.Errorf("ArtistByPlatformID() = %s, want %s", owner.ID, first)
		}
		if _, err := tx.ArtistBySlug(ctx, "nope"); !errors.Is(err, persist.ErrNotFound) {
			t.Errorf("ArtistBySlug(nope) = %v, want ErrNotFound", err)
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
}

func TestUpsertArtistByID_MovesSlug(t *testing.T) {
	s := New()
	ctx := context.Background()

	err := s.WithTx(ctx, func(tx persist.Tx) error {
		a := &model.Artist{Name: "Weeknd", Slug: "weeknd"}
		id, err := tx.UpsertArtist(ctx, a)
		if err != nil {
			return err
		}
		a.Name, a.Slug = "The Weeknd", "the-weeknd"
		again, err := tx.UpsertArtist(ctx, a)
		if err != nil {
			return err
		}
		if again != id {
			t.Errorf("UpsertArtist() by id = %s, want %s", again, id)
		}
		if _, err := tx.ArtistBySlug(ctx, "weeknd"); !errors.Is(err, persist.ErrNotFound) {
			t.Errorf("old slug still resolves: %v", err)
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if c := s.Counts(); c.Artists != 1 {
		t.Errorf("Artists = %d, want 1", c.Artists)
	}
}
