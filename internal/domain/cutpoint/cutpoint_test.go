package cutpoint_test

import (
	"encoding/json"
	"errors"
	"math"
	"testing"

	"github.com/okian/starsim/internal/domain/cutpoint"
	"github.com/okian/starsim/internal/domain/measure"
	"github.com/okian/starsim/internal/domain/types"
	. "github.com/smartystreets/goconvey/convey"
)

const (
	screening = "C-Breast Cancer Screening"
	readmit   = "C-Plan All-Cause Readmissions"
)

func fixture() []cutpoint.CutPoint {
	return []cutpoint.CutPoint{
		{Measure: screening, Year: 2023, Star: 3, Lower: 60, Upper: 70, HigherIsBetter: true},
		{Measure: screening, Year: 2023, Star: 4, Lower: 70, Upper: 80, HigherIsBetter: true},
		{Measure: screening, Year: 2022, Star: 4, Lower: 68, Upper: 78, HigherIsBetter: true},
		{Measure: readmit, Year: 2023, Star: 2, Lower: 12, Upper: 15},
		{Measure: readmit, Year: 2023, Star: 3, Lower: 10, Upper: 12},
		{Measure: "C-Flat", Year: 2023, Star: 3, Lower: 50, Upper: 50, HigherIsBetter: true},
	}
}

func TestPenetration(t *testing.T) {
	Convey("Given a higher-is-better band", t, func() {
		band := cutpoint.CutPoint{Measure: screening, Star: 3, Lower: 60, Upper: 70, HigherIsBetter: true}

		Convey("Then penetration measures distance from the lower bound", func() {
			p, err := cutpoint.Penetration(65, band)
			So(err, ShouldBeNil)
			So(p, ShouldAlmostEqual, 50, 1e-9)
		})

		Convey("And scores outside the band yield values outside [0, 100]", func() {
			p, err := cutpoint.Penetration(72, band)
			So(err, ShouldBeNil)
			So(p, ShouldAlmostEqual, 120, 1e-9)

			p, err = cutpoint.Penetration(58, band)
			So(err, ShouldBeNil)
			So(p, ShouldAlmostEqual, -20, 1e-9)
		})
	})

	Convey("Given a lower-is-better band", t, func() {
		band := cutpoint.CutPoint{Measure: readmit, Star: 3, Lower: 10, Upper: 12}

		Convey("Then penetration measures distance from the upper bound", func() {
			p, err := cutpoint.Penetration(10.5, band)
			So(err, ShouldBeNil)
			So(p, ShouldAlmostEqual, 75, 1e-9)
		})
	})

	Convey("Given a degenerate band", t, func() {
		band := cutpoint.CutPoint{Measure: "C-Flat", Star: 3, Lower: 50, Upper: 50, HigherIsBetter: true}

		Convey("Then penetration fails instead of returning infinity", func() {
			_, err := cutpoint.Penetration(50, band)
			So(errors.Is(err, types.ErrDegenerateBand), ShouldBeTrue)
		})
	})
}

func TestTable(t *testing.T) {
	Convey("Given a cut-point table", t, func() {
		tbl, err := cutpoint.NewTable(fixture())
		So(err, ShouldBeNil)

		Convey("When enriching rows", func() {
			rows := []measure.Row{
				{ContractID: "H1", Year: 2023, Measure: screening, Score: measure.Float(75), Star: measure.Float(4), Weight: 1},
				{ContractID: "H1", Year: 2023, Measure: readmit, Score: measure.Float(11), Star: measure.Float(3), Weight: 3},
				{ContractID: "H1", Year: 2023, Measure: "C-Flat", Score: measure.Float(50), Star: measure.Float(3), Weight: 1},
				{ContractID: "H1", Year: 2023, Measure: "C-Unknown", Score: measure.Float(50), Star: measure.Float(3), Weight: 1},
				{ContractID: "H1", Year: 2023, Measure: screening, Weight: 1},
			}
			got := tbl.Enrich(rows, false)

			Convey("Then every row is kept", func() {
				So(len(got), ShouldEqual, len(rows))
			})

			Convey("And matched rows get their band and penetration", func() {
				So(*got[0].Lower, ShouldEqual, 70)
				So(*got[0].Upper, ShouldEqual, 80)
				So(*got[0].Penetration, ShouldAlmostEqual, 50, 1e-9)
				So(*got[1].Penetration, ShouldAlmostEqual, 50, 1e-9)
			})

			Convey("And a degenerate band yields absent penetration", func() {
				So(got[2].Upper, ShouldNotBeNil)
				So(got[2].Penetration, ShouldBeNil)
			})

			Convey("And rows without a band or a star yield absent values", func() {
				So(got[3].Lower, ShouldBeNil)
				So(got[3].Penetration, ShouldBeNil)
				So(got[4].Penetration, ShouldBeNil)
			})
		})

		Convey("When asking for PDP bands that do not exist", func() {
			_, ok := tbl.Band(screening, 2023, true, 4)
			So(ok, ShouldBeFalse)
		})

		Convey("When building a higher-is-better trend", func() {
			trend, err := tbl.Trend(screening, false)
			So(err, ShouldBeNil)

			Convey("Then stars run 1 to 4 with years ascending", func() {
				So(len(trend), ShouldEqual, 4)
				So(trend[0].Star, ShouldEqual, 1)
				So(trend[3].Star, ShouldEqual, 4)
				So(trend[3].Points, ShouldResemble, []cutpoint.TrendPoint{{Year: 2022, Upper: 78}, {Year: 2023, Upper: 80}})
			})

			Convey("And stars without bands encode an empty list", func() {
				So(trend[0].Points, ShouldNotBeNil)
				So(trend[0].Points, ShouldBeEmpty)
				raw, err := json.Marshal(trend[0])
				So(err, ShouldBeNil)
				So(string(raw), ShouldEqual, `{"star":1,"points":[]}`)
			})
		})

		Convey("When building a lower-is-better trend", func() {
			trend, err := tbl.Trend(readmit, false)
			So(err, ShouldBeNil)

			Convey("Then stars run 5 down to 2", func() {
				So(trend[0].Star, ShouldEqual, 5)
				So(trend[3].Star, ShouldEqual, 2)
				So(trend[3].Points[0].Upper, ShouldEqual, 15)
			})
		})

		Convey("When the measure has no cut points", func() {
			_, err := tbl.Trend("C-Nothing", false)
			So(errors.Is(err, types.ErrNotFound), ShouldBeTrue)
		})
	})

	Convey("Given an inverted band", t, func() {
		_, err := cutpoint.NewTable([]cutpoint.CutPoint{{Measure: screening, Year: 2023, Star: 3, Lower: 70, Upper: 60}})

		Convey("Then the table is rejected", func() {
			So(errors.Is(err, types.ErrInvalidInput), ShouldBeTrue)
		})
	})

	Convey("Given a band with an infinite bound", t, func() {
		for _, cp := range []cutpoint.CutPoint{
			{Measure: screening, Year: 2023, Star: 3, Lower: math.Inf(-1), Upper: 60},
			{Measure: screening, Year: 2023, Star: 3, Lower: 60, Upper: math.Inf(1)},
		} {
			_, err := cutpoint.NewTable([]cutpoint.CutPoint{cp})
			So(errors.Is(err, types.ErrInvalidInput), ShouldBeTrue)
		}
	})
}
