package reliability_test

import (
	"testing"

	"github.com/okian/sickbay/internal/domain/model"
	"github.com/okian/sickbay/internal/domain/reliability"
	. "github.com/smartystreets/goconvey/convey"
)

func TestLookup(t *testing.T) {
	Convey("Given the default reliability table", t, func() {
		table := reliability.Default()

		Convey("Websites match on domain fragments", func() {
			So(table.Lookup("https://www.lequipe.fr/Football/", model.SourceWebsite), ShouldEqual, 0.95)
			So(table.Lookup("goal.com", model.SourceWebsite), ShouldEqual, 0.80)
		})

		Convey("Unknown websites fall back to the website default", func() {
			So(table.Lookup("someblog.example", model.SourceWebsite), ShouldEqual, 0.60)
		})

		Convey("Social handles match case-insensitively", func() {
			So(table.Lookup("@fabrizioromano", model.SourceSocial), ShouldEqual, 0.95)
			So(table.Lookup("@randomfan", model.SourceSocial), ShouldEqual, 0.20)
		})

		Convey("The longest matching key wins", func() {
			custom := reliability.Table{
				Domains: []reliability.Weight{
					{Key: "sport.com", Weight: 0.4},
					{Key: "rmcsport.com", Weight: 0.9},
				},
				WebsiteDefault: 0.6,
			}
			So(custom.Lookup("rmcsport.com/news", model.SourceWebsite), ShouldEqual, 0.9)
		})

		Convey("Other source types use the flat default", func() {
			So(table.Lookup("lequipe.fr", model.SourceOther), ShouldEqual, 0.50)
		})

		Convey("Weights are clamped into [0,1]", func() {
			custom := reliability.Table{Handles: []reliability.Weight{{Key: "x", Weight: 3}}}
			So(custom.Lookup("x", model.SourceSocial), ShouldEqual, 1.0)
		})
	})
}
