package evidence_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/sickbay/internal/adapters/evidence"
	"github.com/okian/sickbay/internal/domain/dedupe"
	"github.com/okian/sickbay/internal/domain/model"
	"github.com/okian/sickbay/pkg/logger"
)

func init() {
	_ = logger.Init()
}

const feed = `{"player_name":"Neymar","raw_text":"<p>Neymar <b>blessure</b> grave, forfait plusieurs semaines</p>","source_label":"lequipe.fr","source_type":"website","url":"https://www.lequipe.fr/a"}
{"player_name":"Neymar","raw_text":"Neymar n&#39;est pas blessé","source_type":"twitter","url":"https://x.com/FabrizioRomano/status/1"}

not json at all
{"player_name":"","raw_text":"no player"}
{"player_name":"Marquinhos","raw_text":"Marquinhos rest","url":"not a url"}
{"player_name":"Neymar","raw_text":"<p>Neymar <b>blessure</b> grave, forfait plusieurs semaines</p>","source_label":"lequipe.fr","source_type":"website","url":"https://www.lequipe.fr/a"}
{"player_name":"Kylian Mbappé","raw_text":"Mbappé touché à la cheville","source_type":"website","url":"https://rmcsport.bfmtv.com/b"}
`

func TestFileSource(t *testing.T) {
	ctx := context.Background()

	Convey("Given a feed with clean, malformed and repeated lines", t, func() {
		src := evidence.NewFileSource("")

		Convey("When every player is read", func() {
			items, stats, err := src.Read(ctx, strings.NewReader(feed), nil)
			So(err, ShouldBeNil)

			Convey("Then bad lines are counted and skipped", func() {
				So(stats.Lines, ShouldEqual, 7)
				So(stats.Malformed, ShouldEqual, 3)
				So(stats.Duplicates, ShouldEqual, 1)
				So(stats.Accepted, ShouldEqual, 3)
				So(len(items), ShouldEqual, 3)
			})

			Convey("Then markup is stripped and entities unescaped", func() {
				So(items[0].RawText, ShouldEqual, "Neymar blessure grave, forfait plusieurs semaines")
				So(items[1].RawText, ShouldEqual, "Neymar n'est pas blessé")
			})

			Convey("Then source types and labels are normalized", func() {
				So(items[0].SourceType, ShouldEqual, model.SourceWebsite)
				So(items[1].SourceType, ShouldEqual, model.SourceSocial)
				So(items[1].SourceLabel, ShouldEqual, "x.com")
				So(items[2].SourceLabel, ShouldEqual, "rmcsport.bfmtv.com")
			})
		})

		Convey("When a player set is given", func() {
			items, _, err := src.Read(ctx, strings.NewReader(feed), []string{"kylian mbappé"})
			So(err, ShouldBeNil)
			So(len(items), ShouldEqual, 1)
			So(items[0].PlayerName, ShouldEqual, "Kylian Mbappé")
		})
	})

	Convey("Given a shared deduper", t, func() {
		d := dedupe.NewInMemoryDeduper()
		src := evidence.NewFileSource("", evidence.WithDeduper(d))

		_, first, _ := src.Read(ctx, strings.NewReader(feed), nil)
		_, second, _ := src.Read(ctx, strings.NewReader(feed), nil)

		Convey("Then a snippet is scored once across reads", func() {
			So(first.Accepted, ShouldEqual, 3)
			So(second.Accepted, ShouldEqual, 0)
			So(second.Duplicates, ShouldEqual, 4)
		})

		Convey("When read items are released", func() {
			items, _, _ := src.Read(ctx, strings.NewReader(feed), []string{"kylian mbappé"})
			So(items, ShouldBeEmpty)

			all, _, _ := evidence.NewFileSource("").Read(ctx, strings.NewReader(feed), nil)
			src.Release(ctx, all[2])

			Convey("Then only those come back on the next read", func() {
				again, stats, err := src.Read(ctx, strings.NewReader(feed), nil)
				So(err, ShouldBeNil)
				So(len(again), ShouldEqual, 1)
				So(again[0].PlayerName, ShouldEqual, "Kylian Mbappé")
				So(stats.Duplicates, ShouldEqual, 3)
			})
		})
	})

	Convey("Given a file on disk", t, func() {
		path := filepath.Join(t.TempDir(), "evidence.jsonl")
		So(os.WriteFile(path, []byte(feed), 0o600), ShouldBeNil)

		items, stats, err := evidence.NewFileSource(path).Fetch(ctx, nil)
		So(err, ShouldBeNil)
		So(len(items), ShouldEqual, 3)
		So(stats.Malformed, ShouldEqual, 3)

		_, _, err = evidence.NewFileSource(filepath.Join(t.TempDir(), "missing.jsonl")).Fetch(ctx, nil)
		So(err, ShouldNotBeNil)

		items, _, err = evidence.NewFileSource("").Fetch(ctx, nil)
		So(err, ShouldBeNil)
		So(items, ShouldBeEmpty)
	})
}

func TestParseLine(t *testing.T) {
	Convey("ParseLine reports malformed lines", t, func() {
		src := evidence.NewFileSource("")

		_, err := src.ParseLine([]byte(`{"player_name":"Neymar","raw_text":"<script>x</script>"}`))
		So(errors.Is(err, evidence.ErrMalformed), ShouldBeTrue)

		_, err = src.ParseLine([]byte(`{"player_name":"Neymar","raw_text":"ok","source_type":"radio"}`))
		So(errors.Is(err, evidence.ErrMalformed), ShouldBeTrue)

		item, err := src.ParseLine([]byte(`{"player_name":"  Neymar ","raw_text":"ok"}`))
		So(err, ShouldBeNil)
		So(item.PlayerName, ShouldEqual, "Neymar")
		So(item.SourceType, ShouldEqual, model.SourceOther)
	})
}
