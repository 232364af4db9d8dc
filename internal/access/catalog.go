package access

import "sort"

// DashboardType names a top-level functional area of the dashboard.
type DashboardType string

const (
	DashboardRiders       DashboardType = "RIDERS"
	DashboardMerchants    DashboardType = "MERCHANTS"
	DashboardCustomers    DashboardType = "CUSTOMERS"
	DashboardOrdersFood   DashboardType = "ORDERS_FOOD"
	DashboardOrdersParcel DashboardType = "ORDERS_PARCEL"
	DashboardOrdersRide   DashboardType = "ORDERS_RIDE"
	DashboardOrdersShop   DashboardType = "ORDERS_SHOP"
	DashboardTickets      DashboardType = "TICKETS"
	DashboardOffers       DashboardType = "OFFERS"
	DashboardPayments     DashboardType = "PAYMENTS"
	DashboardSystem       DashboardType = "SYSTEM"
	DashboardAnalytics    DashboardType = "ANALYTICS"
)

// AccessPointGroup names a capability bundle inside one dashboard.
type AccessPointGroup string

const (
	GroupRiderProfile   AccessPointGroup = "RIDER_PROFILE"
	GroupRiderBlocking  AccessPointGroup = "RIDER_BLOCKING"
	GroupRiderDocuments AccessPointGroup = "RIDER_DOCUMENTS"

	GroupMerchantProfile  AccessPointGroup = "MERCHANT_PROFILE"
	GroupMerchantBlocking AccessPointGroup = "MERCHANT_BLOCKING"
	GroupMerchantMenu     AccessPointGroup = "MERCHANT_MENU"

	GroupCustomerProfile  AccessPointGroup = "CUSTOMER_PROFILE"
	GroupCustomerBlocking AccessPointGroup = "CUSTOMER_BLOCKING"

	GroupOrderView          AccessPointGroup = "ORDER_VIEW"
	GroupOrderCancelAssign  AccessPointGroup = "ORDER_CANCEL_ASSIGN"
	GroupOrderRefundDeliver AccessPointGroup = "ORDER_REFUND_DELIVER"

	GroupTicketFoodView     AccessPointGroup = "TICKET_FOOD_VIEW"
	GroupTicketFoodAction   AccessPointGroup = "TICKET_FOOD_ACTION"
	GroupTicketParcelView   AccessPointGroup = "TICKET_PARCEL_VIEW"
	GroupTicketParcelAction AccessPointGroup = "TICKET_PARCEL_ACTION"
	GroupTicketRideView     AccessPointGroup = "TICKET_RIDE_VIEW"
	GroupTicketRideAction   AccessPointGroup = "TICKET_RIDE_ACTION"
	GroupTicketShopView     AccessPointGroup = "TICKET_SHOP_VIEW"
	GroupTicketShopAction   AccessPointGroup = "TICKET_SHOP_ACTION"
	GroupTicketGeneral      AccessPointGroup = "TICKET_GENERAL"

	GroupOfferManage   AccessPointGroup = "OFFER_MANAGE"
	GroupOfferApproval AccessPointGroup = "OFFER_APPROVAL"

	GroupPaymentView    AccessPointGroup = "PAYMENT_VIEW"
	GroupPaymentPayouts AccessPointGroup = "PAYMENT_PAYOUTS"

	GroupSystemAccounts AccessPointGroup = "SYSTEM_ACCOUNTS"
	GroupSystemAccess   AccessPointGroup = "SYSTEM_ACCESS"
	GroupSystemSettings AccessPointGroup = "SYSTEM_SETTINGS"

	GroupAnalyticsReports AccessPointGroup = "ANALYTICS_REPORTS"
	GroupAnalyticsExport  AccessPointGroup = "ANALYTICS_EXPORT"
)

// ActionType is an operation verb.
type ActionType string

const (
	ActionView    ActionType = "VIEW"
	ActionCreate  ActionType = "CREATE"
	ActionUpdate  ActionType = "UPDATE"
	ActionDelete  ActionType = "DELETE"
	ActionAssign  ActionType = "ASSIGN"
	ActionCancel  ActionType = "CANCEL"
	ActionRefund  ActionType = "REFUND"
	ActionDeliver ActionType = "DELIVER"
	ActionBlock   ActionType = "BLOCK"
	ActionUnblock ActionType = "UNBLOCK"
	ActionApprove ActionType = "APPROVE"
	ActionReject  ActionType = "REJECT"
	ActionExport  ActionType = "EXPORT"
	ActionImport  ActionType = "IMPORT"
	ActionResolve ActionType = "RESOLVE"
)

// Common context constraint keys.
const (
	ContextTicketCategory = "ticket_category"
	ContextTicketType     = "ticket_type"
	ContextServiceLine    = "service_line"
)

var orderGroups = []AccessPointGroup{GroupOrderView, GroupOrderCancelAssign, GroupOrderRefundDeliver}

var catalog = map[DashboardType][]AccessPointGroup{
	DashboardRiders:       {GroupRiderProfile, GroupRiderBlocking, GroupRiderDocuments},
	DashboardMerchants:    {GroupMerchantProfile, GroupMerchantBlocking, GroupMerchantMenu},
	DashboardCustomers:    {GroupCustomerProfile, GroupCustomerBlocking},
	DashboardOrdersFood:   orderGroups,
	DashboardOrdersParcel: orderGroups,
	DashboardOrdersRide:   orderGroups,
	DashboardOrdersShop:   orderGroups,
	DashboardTickets: {
		GroupTicketFoodView, GroupTicketFoodAction,
		GroupTicketParcelView, GroupTicketParcelAction,
		GroupTicketRideView, GroupTicketRideAction,
		GroupTicketShopView, GroupTicketShopAction,
		GroupTicketGeneral,
	},
	DashboardOffers:    {GroupOfferManage, GroupOfferApproval},
	DashboardPayments:  {GroupPaymentView, GroupPaymentPayouts},
	DashboardSystem:    {GroupSystemAccounts, GroupSystemAccess, GroupSystemSettings},
	DashboardAnalytics: {GroupAnalyticsReports, GroupAnalyticsExport},
}

var actions = map[ActionType]struct{}{
	ActionView: {}, ActionCreate: {}, ActionUpdate: {}, ActionDelete: {}, ActionAssign: {},
	ActionCancel: {}, ActionRefund: {}, ActionDeliver: {}, ActionBlock: {}, ActionUnblock: {},
	ActionApprove: {}, ActionReject: {}, ActionExport: {}, ActionImport: {}, ActionResolve: {},
}

// Valid reports whether d is a known dashboard.
func (d DashboardType) Valid() bool {
	_, ok := catalog[d]
	return ok
}

// Valid reports whether a is a known action.
func (a ActionType) Valid() bool {
	_, ok := actions[a]
	return ok
}

// Dashboards returns every dashboard in stable order.
func Dashboards() []DashboardType {
	out := make([]DashboardType, 0, len(catalog))
	for d := range catalog {
		out = append(out, d)
	}
	sortDashboards(out)
	return out
}

// GroupsFor returns the access-point groups scoped to d.
func GroupsFor(d DashboardType) []AccessPointGroup {
	groups := catalog[d]
	return append([]AccessPointGroup(nil), groups...)
}

// ValidGroup reports whether g belongs to dashboard d.
func ValidGroup(d DashboardType, g AccessPointGroup) bool {
	for _, candidate := range catalog[d] {
		if candidate == g {
			return true
		}
	}
	return false
}

func sortDashboards(ds []DashboardType) {
	sort.Slice(ds, func(i, j int) bool { return ds[i] < ds[j] })
}
