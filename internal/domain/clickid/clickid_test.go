package clickid_test

import (
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/leadfuel/pixelbridge/internal/domain/clickid"
	. "github.com/smartystreets/goconvey/convey"
)

func TestFormat(t *testing.T) {
	Convey("Given a raw click id and a domain", t, func() {
		Convey("When formatting with a two-part domain", func() {
			out := clickid.Format("abc123", "example.com")
			parts := strings.Split(out, ".")

			Convey("Then the shape is fb.<index>.<millis>.<raw>", func() {
				So(parts, ShouldHaveLength, 4)
				So(parts[0], ShouldEqual, "fb")
				So(parts[1], ShouldEqual, "1")
				So(parts[3], ShouldEqual, "abc123")
			})

			Convey("Then the third segment is epoch milliseconds, not seconds", func() {
				ts, err := strconv.ParseInt(parts[2], 10, 64)
				So(err, ShouldBeNil)
				now := time.Now().UnixMilli()
				So(ts, ShouldBeGreaterThan, now-2000)
				So(ts, ShouldBeLessThanOrEqualTo, now)
			})
		})

		Convey("When the domain has three parts", func() {
			out := clickid.Format("x", "www.example.com")

			Convey("Then the subdomain index is 2", func() {
				So(strings.Split(out, ".")[1], ShouldEqual, "2")
			})
		})

		Convey("When the domain is a single part", func() {
			out := clickid.Format("x", "localhost")

			Convey("Then the subdomain index is 0", func() {
				So(strings.Split(out, ".")[1], ShouldEqual, "0")
			})
		})

		Convey("When the domain is absent", func() {
			out := clickid.Format("x", "")

			Convey("Then the subdomain index defaults to 1", func() {
				So(strings.Split(out, ".")[1], ShouldEqual, "1")
			})
		})

		Convey("When the raw click id is empty", func() {
			Convey("Then the result is empty", func() {
				So(clickid.Format("", "example.com"), ShouldBeEmpty)
				So(clickid.Format("   ", "example.com"), ShouldBeEmpty)
			})
		})

		Convey("When formatting at a fixed time", func() {
			at := time.UnixMilli(1700000000123)
			out := clickid.FormatAt("raw", "example.com", at)

			Convey("Then the creation segment matches exactly", func() {
				So(out, ShouldEqual, "fb.1.1700000000123.raw")
			})
		})
	})
}
