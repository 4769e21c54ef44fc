// internal/transaction/route.go
package transaction

import (
	"fmt"
	"net/url"
)

// Destination is where the user lands once payment completes.
type Destination string

const (
	DestDashboard      Destination = "dashboard"
	DestClassSelection Destination = "class-selection"
	DestHomeEnrolled   Destination = "home-enrolled"
	DestHome           Destination = "home"
)

// Route is the post-payment routing decision.
type Route struct {
	Destination Destination
	Path        string
	// ClassLimit and Unlimited are only meaningful for DestClassSelection.
	ClassLimit int
	Unlimited  bool
	Banner     string
}

// RouteAfterPayment decides the next step from the finalized transaction's shape:
//
//	SESSION membership          -> dashboard
//	class enrollment            -> home with an enrollment banner
//	plan membership, no class   -> class selection (SILVER 3, GOLD 5, PLATINUM unlimited)
//	anything else               -> home
func RouteAfterPayment(t Transaction) Route {
	mt := t.MembershipType.Normalize()

	switch {
	case mt == Session:
		return Route{Destination: DestDashboard, Path: "/dashboard"}

	case t.ClassID != nil:
		q := url.Values{}
		q.Set("enrolled", t.TransactionCode)
		banner := "You are enrolled"
		if t.ClassName != "" {
			banner = fmt.Sprintf("You are enrolled in %s", t.ClassName)
		}
		return Route{
			Destination: DestHomeEnrolled,
			Path:        "/home?" + q.Encode(),
			Banner:      banner,
		}

	case mt != "":
		limit, unlimited := mt.ClassLimit()
		return Route{
			Destination: DestClassSelection,
			Path:        fmt.Sprintf("/membership/classes?transactionId=%d", t.ID),
			ClassLimit:  limit,
			Unlimited:   unlimited,
		}

	default:
		return Route{Destination: DestHome, Path: "/home"}
	}
}
