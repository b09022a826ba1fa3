package identity_test

import (
	"crypto/sha256"
	"encoding/hex"
	"testing"

	"github.com/leadfuel/pixelbridge/internal/domain/identity"
	"github.com/leadfuel/pixelbridge/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func sha(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

func TestHash(t *testing.T) {
	Convey("Given customer fields", t, func() {
		Convey("When hashing an email with mixed case and whitespace", func() {
			a := identity.Hash(model.CustomerFields{Email: "Test@Example.com "})
			b := identity.Hash(model.CustomerFields{Email: "test@example.com"})

			Convey("Then normalization happens before hashing", func() {
				So(a.Email, ShouldEqual, b.Email)
				So(a.Email, ShouldEqual, sha("test@example.com"))
			})
		})

		Convey("When hashing a formatted phone number", func() {
			ud := identity.Hash(model.CustomerFields{Phone: "+55 (11) 98765-4321"})

			Convey("Then non-digits are stripped before hashing", func() {
				So(ud.Phone, ShouldEqual, sha("5511987654321"))
			})
		})

		Convey("When fields are absent", func() {
			ud := identity.Hash(model.CustomerFields{Email: "a@b.com"})

			Convey("Then absent fields are omitted, never hashed as empty", func() {
				So(ud.Phone, ShouldBeEmpty)
				So(ud.FirstName, ShouldBeEmpty)
				So(ud.City, ShouldBeEmpty)
				So(ud.Phone, ShouldNotEqual, sha(""))
			})
		})

		Convey("When hashing every recognized field", func() {
			ud := identity.Hash(model.CustomerFields{
				Email:     "A@B.com",
				Phone:     "123-456",
				FirstName: " Maria ",
				LastName:  "Silva",
				City:      "Sao Paulo",
				State:     "SP",
				ZipCode:   "01310-100",
				Country:   "BR",
			})

			Convey("Then each produces a 64-char hex digest", func() {
				for _, digest := range []string{ud.Email, ud.Phone, ud.FirstName, ud.LastName, ud.City, ud.State, ud.ZipCode, ud.Country} {
					So(digest, ShouldHaveLength, 64)
				}
				So(ud.FirstName, ShouldEqual, sha("maria"))
				So(ud.Country, ShouldEqual, sha("br"))
			})
		})

		Convey("When hashing is a pure function", func() {
			in := model.CustomerFields{Email: "a@b.com"}
			first := identity.Hash(in)
			second := identity.Hash(in)

			Convey("Then repeated calls are stable and the input is untouched", func() {
				So(first, ShouldResemble, second)
				So(in.Email, ShouldEqual, "a@b.com")
			})
		})
	})
}

func TestPassthrough(t *testing.T) {
	Convey("Given hashing disabled", t, func() {
		ud := identity.Passthrough(model.CustomerFields{
			Email: " Test@Example.com",
			Phone: "(11) 9876",
		})

		Convey("Then fields are normalized but not hashed", func() {
			So(ud.Email, ShouldEqual, "test@example.com")
			So(ud.Phone, ShouldEqual, "119876")
		})
	})
}
