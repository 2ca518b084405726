package models

// Role names the kind of caller.
type Role string

const (
	RoleBuyer  Role = "buyer"
	RoleSeller Role = "seller"
	RoleAdmin  Role = "admin"
	RoleSystem Role = "system"
)

// Principal is the authenticated caller. It is one of Buyer, Seller, Admin
// or System and is resolved once at the transport boundary.
type Principal interface {
	UserID() int64
	Role() Role
}

type Buyer struct {
	ID int64
}

func (b Buyer) UserID() int64 { return b.ID }
func (Buyer) Role() Role      { return RoleBuyer }

// Seller is a user acting for the shop identified by SellerID.
type Seller struct {
	ID       int64
	SellerID int64
}

func (s Seller) UserID() int64 { return s.ID }
func (Seller) Role() Role      { return RoleSeller }

type Admin struct {
	ID int64
}

func (a Admin) UserID() int64 { return a.ID }
func (Admin) Role() Role      { return RoleAdmin }

// System is the service itself acting on behalf of an internal consumer,
// such as payment events.
type System struct{}

func (System) UserID() int64 { return 0 }
func (System) Role() Role    { return RoleSystem }
