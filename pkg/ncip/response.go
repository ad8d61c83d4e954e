package ncip

import "github.com/beevik/etree"

// Outcome selects which canned response shape BuildResponse produces.
type Outcome int

const (
	// OutcomeSuccess is a bare response envelope acknowledging the request.
	OutcomeSuccess Outcome = iota
	// OutcomeProblem is a response envelope carrying the fixed Problem block.
	OutcomeProblem
)

const (
	ncipDTDURL = "http://www.niso.org/ncip/v1_0/imp1/dtd/ncip_v1_0.dtd"
	ncipDTD    = `DOCTYPE NCIPMessage PUBLIC "-//NISO//NCIP DTD Version 1//EN" "http://www.niso.org/ncip/v1_0/imp1/dtd/ncip_v1_0.dtd"`

	// Agency-id scheme URI the InnReach central server expects in response
	// headers. InnReach serves its scheme values from the central circulation
	// daemon rather than a stable hostname.
	agencySchemeURL = "http://72.52.134.169:6601/IRCIRCD?target=get_scheme_values&scheme=UniqueAgencyId"

	problemCode    = "0104 - NCIP Parse Error"
	problemMessage = "Alma API returned an error state"
)

// BuildResponse constructs the canned NCIP response returned by the checkout
// and renewal paths. responseType is the bare request type ("ItemCheckedOut",
// "ItemRenewed"); "Response" is appended to form the envelope element name.
// The envelope echoes nothing from the inbound request beyond the site code.
func BuildResponse(siteCode, responseType string, outcome Outcome) *Document {
	tree := etree.NewDocument()
	tree.CreateProcInst("xml", `version="1.0" encoding="UTF-8"`)
	tree.CreateDirective(ncipDTD)

	msg := tree.CreateElement("NCIPMessage")
	msg.CreateAttr("version", ncipDTDURL)

	resp := msg.CreateElement(responseType + "Response")
	header := resp.CreateElement("ResponseHeader")
	for _, role := range []string{"FromAgencyId", "ToAgencyId"} {
		agency := header.CreateElement(role).CreateElement("UniqueAgencyId")
		agency.CreateElement("Scheme").SetText(agencySchemeURL)
		agency.CreateElement("Value").SetText(siteCode)
	}

	if outcome == OutcomeProblem {
		problem := resp.CreateElement("Problem")
		problem.CreateElement("ErrorCode").SetText(problemCode)
		problem.CreateElement("ErrorMessage").SetText(problemMessage)
	}

	return &Document{tree: tree}
}
