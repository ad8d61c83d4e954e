// Package translate encodes the structural and lexical differences between
// the InnReach and Alma NCIP dialects.
//
// The two rewrite directions are [Translator.ToAlma] for inbound InnReach
// requests and [Translator.ToInnReach] for Alma replies. Both are pure tree
// rewrites over a parsed NCIP document, parameterized by the agency
// identifier mapping of the two systems.
//
// Every rule is guarded by the presence of its target nodes: a missing node
// means the rule does not apply to this document, never an error. The rules
// operate on disjoint subtrees and are independently idempotent, so their
// order within each direction does not matter.
package translate

import (
	"log/slog"
	"strings"

	"github.com/beevik/etree"

	"github.com/CentralMichiganUniversity-Library/Alma-InnReach-Relay/pkg/ncip"
)

const (
	// Scheme URI for the ApplicationProfileType block Alma requires on
	// initiation headers.
	profileSchemeURL = "http://www.niso.org/ncip/v1_0/imp1/dtd/ncip_v1_0.dtd?target=get_scheme_values&scheme=UniqueAgencyId"

	// Alma emits this fixed string as the agency-id scheme; InnReach
	// requires the site-specific scheme tag instead.
	almaAgencyScheme = "NCIP Unique Agency Id"

	// IANA URI-scheme registry, used to type rebuilt electronic addresses.
	ianaSchemesURL = "http://www.iana.org/assignments/uri-schemes.html"
)

// AgencyMapping pairs the InnReach site identity with the Alma institution
// identity. It is immutable and shared read-only by all requests.
type AgencyMapping struct {
	// SiteCode is the InnReach site code (local agency).
	SiteCode string
	// SchemeTag replaces Alma's fixed agency-id scheme string on responses.
	SchemeTag string
	// UserIDSchemeTag is the scheme for UniqueUserId blocks injected into
	// LookupUser requests.
	UserIDSchemeTag string
	// UserGroup replaces every Alma user-privilege value.
	UserGroup string
	// InstitutionCode is the Alma institution code (remote agency).
	InstitutionCode string
	// InstitutionName is the Alma institution's display name, which Alma
	// interpolates into scheme strings and agency values.
	InstitutionName string
	// ProfileCode is the Alma NCIP profile inserted into outbound headers.
	ProfileCode string
}

// Translator rewrites NCIP documents between the two dialects.
type Translator struct {
	mapping AgencyMapping
	logger  *slog.Logger
}

// New creates a Translator for the given agency mapping.
func New(mapping AgencyMapping, logger *slog.Logger) *Translator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Translator{mapping: mapping, logger: logger}
}

// ToAlma rewrites an inbound InnReach request into the Alma dialect in
// place. requestType is the sniffed NCIP message type.
func (t *Translator) ToAlma(doc *ncip.Document, requestType string) {
	// Alma identifies the library by institution code, not InnReach site
	// code. Swap every occurrence.
	for _, el := range doc.ElementsWithText(t.mapping.SiteCode) {
		el.SetText(t.mapping.InstitutionCode)
	}

	// Alma requires an ApplicationProfileType on the initiation header to
	// route the message to the right NCIP profile.
	if header := doc.FindElement("//InitiationHeader"); header != nil {
		profile := header.CreateElement("ApplicationProfileType")
		scheme := profile.CreateElement("Scheme")
		scheme.CreateAttr("datatype", "string")
		scheme.SetText(profileSchemeURL)
		value := profile.CreateElement("Value")
		value.CreateAttr("datatype", "string")
		value.SetText(t.mapping.ProfileCode)
	}

	switch requestType {
	case "LookupUser":
		t.addLookupUserID(doc)
	case "AcceptItem":
		t.swapAcceptItemUserID(doc)
	}
}

// addLookupUserID appends a UniqueUserId block built from the visible
// barcode. InnReach sends only a VisibleUserId; Alma looks patrons up by
// UniqueUserId.
func (t *Translator) addLookupUserID(doc *ncip.Document) {
	barcode := doc.FindElement("/NCIPMessage/LookupUser/VisibleUserId/VisibleUserIdentifier")
	if barcode == nil {
		return
	}
	lookup := barcode.Parent().Parent()

	unique := lookup.CreateElement("UniqueUserId")
	agency := unique.CreateElement("UniqueAgencyId")
	scheme := agency.CreateElement("Scheme")
	scheme.CreateAttr("datatype", "string")
	scheme.SetText(t.mapping.UserIDSchemeTag)
	value := agency.CreateElement("Value")
	value.CreateAttr("datatype", "string")
	value.SetText(t.mapping.InstitutionCode)
	id := unique.CreateElement("UserIdentifierValue")
	id.CreateAttr("datatype", "string")
	id.SetText(barcode.Text())
}

// swapAcceptItemUserID overwrites the unique user identifier with the
// visible barcode. Alma expects the barcode in the field InnReach uses for
// its internal identifier.
func (t *Translator) swapAcceptItemUserID(doc *ncip.Document) {
	id := doc.FindElement("/NCIPMessage/AcceptItem/UniqueUserId/UserIdentifierValue")
	barcode := doc.FindElement("/NCIPMessage/AcceptItem/UserOptionalFields/VisibleUserId/VisibleUserIdentifier")
	if id == nil || barcode == nil {
		return
	}
	id.SetText(barcode.Text())
}

// ToInnReach rewrites an Alma reply into the InnReach dialect in place.
// requestType is the type of the original request, used to name the typed
// response element when unwrapping Alma's generic Response wrapper.
func (t *Translator) ToInnReach(doc *ncip.Document, requestType string) {
	for _, el := range doc.ElementsWithText(t.mapping.InstitutionCode) {
		el.SetText(t.mapping.SiteCode)
	}

	// Alma interpolates the institution's display name into scheme strings
	// and agency values; InnReach only understands the site code.
	for _, el := range doc.ElementsMatching("Scheme", t.mapping.InstitutionName) {
		el.SetText(strings.ReplaceAll(el.Text(), t.mapping.InstitutionName, t.mapping.SiteCode))
	}
	for _, el := range doc.ElementsMatching("Value", t.mapping.InstitutionName) {
		if parent := el.Parent(); parent != nil && parent.Tag == "UniqueAgencyId" {
			el.SetText(strings.ReplaceAll(el.Text(), t.mapping.InstitutionName, t.mapping.SiteCode))
		}
	}

	for _, el := range doc.ElementsWithText(almaAgencyScheme) {
		if el.Tag == "Scheme" {
			el.SetText(t.mapping.SchemeTag)
		}
	}

	t.unwrapGenericResponse(doc, requestType)
	t.rebuildElectronicAddress(doc)
	t.preferVisibleBarcode(doc)

	if group := doc.FindElement("/NCIPMessage/LookupUserResponse/UserOptionalFields/UserPrivilege/AgencyUserPrivilegeType/Value"); group != nil {
		group.SetText(t.mapping.UserGroup)
	}
}

// unwrapGenericResponse renames Alma's bare Response wrapper to the typed
// <requestType>Response element InnReach requires, preserving child order.
func (t *Translator) unwrapGenericResponse(doc *ncip.Document, requestType string) {
	msg := doc.FindElement("/NCIPMessage")
	if msg == nil {
		return
	}
	generic := msg.SelectElement("Response")
	if generic == nil {
		return
	}

	typed := etree.NewElement(requestType + "Response")
	for _, child := range generic.ChildElements() {
		generic.RemoveChild(child)
		typed.AddChild(child)
	}
	msg.InsertChildAt(generic.Index(), typed)
	msg.RemoveChild(generic)
}

// rebuildElectronicAddress rewraps a bare electronic address as a typed
// mailto address. Alma returns the patron email as a flat ElectronicAddress;
// InnReach rejects it without an ElectronicAddressType.
func (t *Translator) rebuildElectronicAddress(doc *ncip.Document) {
	email := doc.FindElement("/NCIPMessage/LookupUserResponse/UserOptionalFields/UserAddressInformation/ElectronicAddress")
	if email == nil {
		return
	}
	addressInfo := email.Parent()
	optionalFields := addressInfo.Parent()

	rebuilt := optionalFields.CreateElement("UserAddressInformation")
	address := rebuilt.CreateElement("ElectronicAddress")
	addressType := address.CreateElement("ElectronicAddressType")
	addressType.CreateElement("Scheme").SetText(ianaSchemesURL)
	addressType.CreateElement("Value").SetText("mailto")
	address.CreateElement("ElectronicAddressData").SetText(email.Text())

	optionalFields.RemoveChild(addressInfo)
}

// preferVisibleBarcode overwrites the Alma primary identifier with the
// patron barcode. InnReach identifies patrons by barcode, not by Alma's
// internal id.
func (t *Translator) preferVisibleBarcode(doc *ncip.Document) {
	id := doc.FindElement("/NCIPMessage/LookupUserResponse/UniqueUserId/UserIdentifierValue")
	if id == nil {
		return
	}
	for _, visible := range doc.FindElements("/NCIPMessage/LookupUserResponse/UserOptionalFields/VisibleUserId") {
		idType := visible.FindElement("VisibleUserIdentifierType/Value")
		if idType == nil || idType.Text() != "BARCODE" {
			continue
		}
		if barcode := visible.FindElement("VisibleUserIdentifier"); barcode != nil {
			id.SetText(barcode.Text())
			return
		}
	}
}
