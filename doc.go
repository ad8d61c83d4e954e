// Copyright (c) 2024 Central Michigan University Library
// SPDX-License-Identifier: BSD-2-Clause

/*
Package relay implements an NCIP relay between the InnReach resource-sharing
network and the Ex Libris Alma library-services platform.

# Overview

InnReach and Alma both speak NCIP (NISO Circulation Interchange Protocol),
but in incompatible dialects. They disagree on agency identifiers, scheme
URIs, the nesting of certain response elements, and on whether a checkout or
renewal event is a data-only notification or must be executed as a live API
transaction. This service sits between the two systems and makes each one
believe it is talking to a compatible peer.

An inbound InnReach NCIP document is handled one of two ways:

  - Generic relay: the document is rewritten into the Alma dialect, POSTed to
    the Alma NCIP endpoint, and the Alma reply is rewritten back into the
    InnReach dialect before being returned.

  - Checkout orchestration: ItemCheckedOut and ItemRenewed are notifications
    of events that already happened on the InnReach side. Alma has no native
    way to accept such a notification, so the relay replays the event as one
    or two Alma REST API transactions (create loan, then set due date; or
    look up the loan, then set due date) and synthesizes a canned NCIP
    response reflecting the outcome.

# Package Structure

	github.com/CentralMichiganUniversity-Library/Alma-InnReach-Relay/pkg/ncip           - NCIP document model and response builder
	github.com/CentralMichiganUniversity-Library/Alma-InnReach-Relay/internal/translate - InnReach/Alma dialect translation rules
	github.com/CentralMichiganUniversity-Library/Alma-InnReach-Relay/internal/alma      - Alma NCIP and REST API client
	github.com/CentralMichiganUniversity-Library/Alma-InnReach-Relay/internal/checkout  - checkout and renewal orchestration
	github.com/CentralMichiganUniversity-Library/Alma-InnReach-Relay/internal/server    - HTTP server and relay controller
	github.com/CentralMichiganUniversity-Library/Alma-InnReach-Relay/internal/config    - YAML configuration
	github.com/CentralMichiganUniversity-Library/Alma-InnReach-Relay/cmd/ncip-relay     - server binary

# Quick Start

Run the relay with a configuration file:

	ncip-relay --config /etc/ncip-relay/config.yaml

Point the InnReach central server at the relay's /ncip endpoint and set the
Alma endpoint URLs in the configuration. See internal/config for the full
configuration reference.

# References

  - NCIP v1.0: https://www.niso.org/publications/ncip-niso-circulation-interchange-protocol
  - Alma REST APIs: https://developers.exlibrisgroup.com/alma/apis/
  - InnReach: https://www.iii.com/products/innreach/

# License

BSD-2-Clause License
*/
package relay
