// Copyright (c) 2024 Central Michigan University Library
// SPDX-License-Identifier: BSD-2-Clause

/*
Package ncip provides the in-memory document model for NCIP messages.

An NCIP message is an ordered XML tree rooted at a single NCIPMessage
element. The element name of its first child identifies the request or
response type (LookupUser, AcceptItem, ItemCheckedOut, ...). Documents are
created fresh from the inbound byte stream, mutated in place by the
translation rules, and discarded after serialization; nothing is shared
between requests.

# Document Model

[Document] wraps an etree tree and adds the lookups the dialect translation
rules need beyond plain path descent:

  - FindElement / FindElements: etree path queries (absolute descent,
    descendant search, wildcards)
  - ElementsWithText: every leaf element whose text equals a value exactly
  - ElementsMatching: every element with a given tag whose text contains a
    substring

Absence of a match is never an error. Callers treat a missing node as "rule
does not apply" and move on.

# Canned Responses

[BuildResponse] produces the two fixed response shapes returned by the
checkout and renewal paths: a success envelope, or a problem envelope
carrying a fixed error code and message. Both are parameterized only by the
site code and the response-type name; they echo nothing else from the
inbound request.

# Serialization

[Document.Bytes] always emits a UTF-8 XML declaration regardless of the
declaration on the source bytes. Alma rejects bodies that declare any other
encoding.
*/
package ncip
