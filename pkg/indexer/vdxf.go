// SPDX-License-Identifier: LGPL-3.0-or-later

// Package indexer polls the chain for identity content-map updates and
// decodes them into agents, services, reviews, and session parameters
// (spec.md component C5).
package indexer

// Fixed VDXF i-address keys for the platform's content-multimap schema
// fields (spec.md §6 "VDXF content model": "each schema is a fixed map of
// field name -> i-address"). The specification describes these as fixed
// identity addresses the platform assigns but does not enumerate their
// literal values; the constants below are this platform's concrete
// assignments (see DESIGN.md's Open Question log).
const (
	fieldAgentName   fieldKey = "iAgentNameKey1111111111111111111111"
	fieldAgentType   fieldKey = "iAgentTypeKey1111111111111111111111"
	fieldAgentOwner  fieldKey = "iAgentOwnerKey111111111111111111111"

	fieldServiceName       fieldKey = "iSvcNameKey111111111111111111111111"
	fieldServicePrice      fieldKey = "iSvcPriceKey11111111111111111111111"
	fieldServiceCurrency   fieldKey = "iSvcCurrencyKey1111111111111111111111"
	fieldServiceCategory   fieldKey = "iSvcCategoryKey111111111111111111111"
	fieldServiceTurnaround fieldKey = "iSvcTurnaroundKey11111111111111111111"

	fieldReviewBuyer   fieldKey = "iReviewBuyerKey11111111111111111111"
	fieldReviewJobHash fieldKey = "iReviewJobHashKey111111111111111111"
	fieldReviewRating  fieldKey = "iReviewRatingKey111111111111111111"
	fieldReviewMessage fieldKey = "iReviewMessageKey11111111111111111"
	fieldReviewSig     fieldKey = "iReviewSigKey111111111111111111111"

	// Session parameters are stored as arrays parallel to the services
	// array: index i applies to services[i], defaulting when shorter.
	fieldSessionDuration    fieldKey = "iSessDurationKey1111111111111111111"
	fieldSessionMaxTokens   fieldKey = "iSessMaxTokensKey111111111111111111"
	fieldSessionMaxImages   fieldKey = "iSessMaxImagesKey111111111111111111"
	fieldSessionMaxMessages fieldKey = "iSessMaxMsgKey11111111111111111111"
	fieldSessionMaxFileMB   fieldKey = "iSessMaxFileKey111111111111111111111"
	fieldSessionMIME        fieldKey = "iSessMimeKey111111111111111111111111"
)

type fieldKey = string
