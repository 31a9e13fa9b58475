package simulation_test

import (
	"errors"
	"testing"

	"github.com/okian/starsim/internal/domain/measure"
	"github.com/okian/starsim/internal/domain/simulation"
	"github.com/okian/starsim/internal/domain/types"
	. "github.com/smartystreets/goconvey/convey"
)

func rows() []measure.Row {
	return []measure.Row{
		{ContractID: "H1", Year: 2023, Measure: "A", Score: measure.Float(60), Star: measure.Float(3), Weight: 3},
		{ContractID: "H1", Year: 2023, Measure: "B", Score: measure.Float(90), Star: measure.Float(5), Weight: 1},
		{ContractID: "H1", Year: 2023, Measure: "C", Weight: 1},
	}
}

func TestOverlay(t *testing.T) {
	Convey("Given an empty overlay", t, func() {
		o := simulation.NewOverlay()

		Convey("When applying it", func() {
			in := rows()
			out := o.Apply(in)

			Convey("Then rows are returned unchanged", func() {
				So(out, ShouldResemble, in)
			})
		})

		Convey("When clearing it", func() {
			o.Clear()

			Convey("Then it stays empty without error", func() {
				So(o.Len(), ShouldEqual, 0)
			})
		})

		Convey("When setting an override", func() {
			So(o.Set("A", 5), ShouldBeNil)
			in := rows()
			out := o.Apply(in)

			Convey("Then the matching row's star is replaced", func() {
				So(*out[0].Star, ShouldEqual, 5)
				So(*out[1].Star, ShouldEqual, 5)
				So(out[2].Star, ShouldBeNil)
			})

			Convey("And the input is not mutated", func() {
				So(*in[0].Star, ShouldEqual, 3)
			})

			Convey("And other fields are preserved", func() {
				So(*out[0].Score, ShouldEqual, 60)
				So(out[0].Weight, ShouldEqual, 3)
			})

			Convey("And repeating the same override is idempotent", func() {
				So(o.Set("A", 5), ShouldBeNil)
				So(o.Apply(in), ShouldResemble, out)
				So(o.Apply(out), ShouldResemble, out)
				So(o.Len(), ShouldEqual, 1)
			})

			Convey("And a later override replaces the earlier one", func() {
				So(o.Set("A", 2), ShouldBeNil)
				So(*o.Apply(in)[0].Star, ShouldEqual, 2)
			})
		})

		Convey("When overriding an unscored measure", func() {
			So(o.Set("C", 4), ShouldBeNil)

			Convey("Then it receives a star", func() {
				So(*o.Apply(rows())[2].Star, ShouldEqual, 4)
			})
		})

		Convey("When overriding a measure absent from the table", func() {
			So(o.Set("Z", 1), ShouldBeNil)

			Convey("Then applying is a no-op", func() {
				So(o.Apply(rows()), ShouldResemble, rows())
			})
		})

		Convey("When the star is out of range", func() {
			err := o.Set("A", 6)

			Convey("Then it is rejected", func() {
				So(errors.Is(err, types.ErrInvalidStar), ShouldBeTrue)
				So(o.Len(), ShouldEqual, 0)
			})
		})

		Convey("When listing overrides", func() {
			_ = o.Set("B", 2)
			_ = o.Set("A", 4)

			Convey("Then they are sorted by measure", func() {
				So(o.Overrides(), ShouldResemble, []simulation.Override{{Measure: "A", Star: 4}, {Measure: "B", Star: 2}})
			})

			Convey("And clearing removes them all", func() {
				o.Clear()
				So(o.Overrides(), ShouldBeEmpty)
			})
		})
	})

	Convey("Given a nil overlay", t, func() {
		var o *simulation.Overlay

		Convey("Then applying copies rows", func() {
			So(o.Apply(rows()), ShouldResemble, rows())
			So(o.Len(), ShouldEqual, 0)
		})
	})
}

func TestRegistry(t *testing.T) {
	Convey("Given a registry", t, func() {
		var evicted []string
		reg, err := simulation.NewRegistry(
			simulation.WithMaxSessions(2),
			simulation.WithEvictionHook(func(id string) { evicted = append(evicted, id) }),
		)
		So(err, ShouldBeNil)

		Convey("When two sessions override the same measure", func() {
			a := reg.Create()
			b := reg.Create()
			So(reg.Set(a, "A", 5), ShouldBeNil)
			So(reg.Set(b, "A", 1), ShouldBeNil)

			Convey("Then each session sees only its own override", func() {
				oa, err := reg.Snapshot(a)
				So(err, ShouldBeNil)
				ob, err := reg.Snapshot(b)
				So(err, ShouldBeNil)
				sa, _ := oa.Star("A")
				sb, _ := ob.Star("A")
				So(sa, ShouldEqual, 5)
				So(sb, ShouldEqual, 1)
			})

			Convey("And a snapshot is independent of later changes", func() {
				snap, _ := reg.Snapshot(a)
				So(reg.Clear(a), ShouldBeNil)
				So(snap.Len(), ShouldEqual, 1)
				now, _ := reg.Snapshot(a)
				So(now.Len(), ShouldEqual, 0)
			})

			Convey("And clearing twice is fine", func() {
				So(reg.Clear(a), ShouldBeNil)
				So(reg.Clear(a), ShouldBeNil)
			})

			Convey("And creating a third session evicts the least recently used", func() {
				_, _ = reg.Snapshot(a)
				c := reg.Create()
				So(reg.Len(), ShouldEqual, 2)
				So(evicted, ShouldResemble, []string{b})
				_, err := reg.Snapshot(b)
				So(errors.Is(err, types.ErrNotFound), ShouldBeTrue)
				_, err = reg.Snapshot(c)
				So(err, ShouldBeNil)
			})
		})

		Convey("When dropping sessions", func() {
			id := reg.Create()
			So(reg.Drop(id), ShouldBeNil)

			Convey("Then the eviction hook is not called", func() {
				So(evicted, ShouldBeEmpty)
			})

			Convey("And dropping again reports not found", func() {
				So(errors.Is(reg.Drop(id), types.ErrNotFound), ShouldBeTrue)
			})

			Convey("And using the dropped session reports not found", func() {
				So(errors.Is(reg.Set(id, "A", 3), types.ErrNotFound), ShouldBeTrue)
				So(errors.Is(reg.Clear(id), types.ErrNotFound), ShouldBeTrue)
			})
		})
	})
}
