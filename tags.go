// Copyright 2019 Google LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package rpmkit

import "fmt"

// Region tags. A region entry is the first index entry of a header section.
const (
	RegionSignatures = 0x3e // 62
	RegionImmutable  = 0x3f // 63

	TagHeaderI18NTable = 0x64 // 100

	TagLongArchiveSize = 0x010f // 271
)

// Signature tags are obviously overlapping regular header tags..
const (
	SigSHA1        = 0x010d // 269
	SigLongSize    = 0x010e // 270
	SigLongArchive = 0x010f // 271
	SigSHA256      = 0x0111 // 273
	SigSize        = 0x03e8 // 1000
	SigMD5         = 0x03ec // 1004
	SigPayloadSize = 0x03ef // 1007
)

const (
	TagName              = 0x03e8 // 1000
	TagVersion           = 0x03e9 // 1001
	TagRelease           = 0x03ea // 1002
	TagEpoch             = 0x03eb // 1003
	TagSummary           = 0x03ec // 1004
	TagDescription       = 0x03ed // 1005
	TagBuildTime         = 0x03ee // 1006
	TagBuildHost         = 0x03ef // 1007
	TagSize              = 0x03f1 // 1009
	TagVendor            = 0x03f3 // 1011
	TagLicence           = 0x03f6 // 1014
	TagPackager          = 0x03f7 // 1015
	TagGroup             = 0x03f8 // 1016
	TagURL               = 0x03fc // 1020
	TagOS                = 0x03fd // 1021
	TagArch              = 0x03fe // 1022
	TagFileSizes         = 0x0404 // 1028
	TagFileModes         = 0x0406 // 1030
	TagFileMTimes        = 0x040a // 1034
	TagFileDigests       = 0x040b // 1035
	TagFileLinkTos       = 0x040c // 1036
	TagFileFlags         = 0x040d // 1037
	TagFileUserName      = 0x040f // 1039
	TagFileGroupName     = 0x0410 // 1040
	TagSourceRPM         = 0x0414 // 1044
	TagArchiveSize       = 0x0416 // 1046
	TagFileVerifyFlags   = 0x0415 // 1045
	TagProvides          = 0x0417 // 1047
	TagRequireFlags      = 0x0418 // 1048
	TagRequires          = 0x0419 // 1049
	TagRequireVersion    = 0x041a // 1050
	TagConflictFlags     = 0x041d // 1053
	TagConflicts         = 0x041e // 1054
	TagConflictVersion   = 0x041f // 1055
	TagRPMVersion        = 0x0428 // 1064
	TagObsoletes         = 0x0442 // 1090
	TagFileINodes        = 0x0448 // 1096
	TagProvideFlags      = 0x0458 // 1112
	TagProvideVersion    = 0x0459 // 1113
	TagObsoleteFlags     = 0x045a // 1114
	TagObsoleteVersion   = 0x045b // 1115
	TagDirindexes        = 0x045c // 1116
	TagBasenames         = 0x045d // 1117
	TagDirnames          = 0x045e // 1118
	TagPayloadFormat     = 0x0464 // 1124
	TagPayloadCompressor = 0x0465 // 1125
	TagPayloadFlags      = 0x0466 // 1126
	TagLongFileSizes     = 0x1390 // 5008
	TagLongSize          = 0x1391 // 5009
	TagFileDigestAlgo    = 0x1393 // 5011
	TagRecommends        = 0x13b6 // 5046
	TagRecommendVersion  = 0x13b7 // 5047
	TagRecommendFlags    = 0x13b8 // 5048
	TagSuggests          = 0x13b9 // 5049
	TagSuggestVersion    = 0x13ba // 5050
	TagSuggestFlags      = 0x13bb // 5051
)

var tagNames = map[int]string{
	RegionSignatures:     "HEADERSIGNATURES",
	RegionImmutable:      "HEADERIMMUTABLE",
	TagHeaderI18NTable:   "HEADERI18NTABLE",
	TagLongArchiveSize:   "LONGARCHIVESIZE",
	TagName:              "NAME",
	TagVersion:           "VERSION",
	TagRelease:           "RELEASE",
	TagEpoch:             "EPOCH",
	TagSummary:           "SUMMARY",
	TagDescription:       "DESCRIPTION",
	TagBuildTime:         "BUILDTIME",
	TagBuildHost:         "BUILDHOST",
	TagSize:              "SIZE",
	TagVendor:            "VENDOR",
	TagLicence:           "LICENSE",
	TagPackager:          "PACKAGER",
	TagGroup:             "GROUP",
	TagURL:               "URL",
	TagOS:                "OS",
	TagArch:              "ARCH",
	TagFileSizes:         "FILESIZES",
	TagFileModes:         "FILEMODES",
	TagFileMTimes:        "FILEMTIMES",
	TagFileDigests:       "FILEDIGESTS",
	TagFileLinkTos:       "FILELINKTOS",
	TagFileFlags:         "FILEFLAGS",
	TagFileUserName:      "FILEUSERNAME",
	TagFileGroupName:     "FILEGROUPNAME",
	TagSourceRPM:         "SOURCERPM",
	TagArchiveSize:       "ARCHIVESIZE",
	TagFileVerifyFlags:   "FILEVERIFYFLAGS",
	TagProvides:          "PROVIDENAME",
	TagRequireFlags:      "REQUIREFLAGS",
	TagRequires:          "REQUIRENAME",
	TagRequireVersion:    "REQUIREVERSION",
	TagConflictFlags:     "CONFLICTFLAGS",
	TagConflicts:         "CONFLICTNAME",
	TagConflictVersion:   "CONFLICTVERSION",
	TagRPMVersion:        "RPMVERSION",
	TagObsoletes:         "OBSOLETENAME",
	TagFileINodes:        "FILEINODES",
	TagProvideFlags:      "PROVIDEFLAGS",
	TagProvideVersion:    "PROVIDEVERSION",
	TagObsoleteFlags:     "OBSOLETEFLAGS",
	TagObsoleteVersion:   "OBSOLETEVERSION",
	TagDirindexes:        "DIRINDEXES",
	TagBasenames:         "BASENAMES",
	TagDirnames:          "DIRNAMES",
	TagPayloadFormat:     "PAYLOADFORMAT",
	TagPayloadCompressor: "PAYLOADCOMPRESSOR",
	TagPayloadFlags:      "PAYLOADFLAGS",
	TagFileDigestAlgo:    "FILEDIGESTALGO",
	TagLongFileSizes:     "LONGFILESIZES",
	TagLongSize:          "LONGSIZE",
	TagRecommends:        "RECOMMENDNAME",
	TagRecommendVersion:  "RECOMMENDVERSION",
	TagRecommendFlags:    "RECOMMENDFLAGS",
	TagSuggests:          "SUGGESTNAME",
	TagSuggestVersion:    "SUGGESTVERSION",
	TagSuggestFlags:      "SUGGESTFLAGS",
}

var sigTagNames = map[int]string{
	RegionSignatures: "HEADERSIGNATURES",
	SigSHA1:          "SHA1HEADER",
	SigSHA256:        "SHA256HEADER",
	SigLongSize:      "LONGSIGSIZE",
	SigLongArchive:   "LONGARCHIVESIZE",
	SigSize:          "SIZE",
	SigMD5:           "MD5",
	SigPayloadSize:   "PAYLOADSIZE",
}

// HeaderTagName returns the rpm name of a main header tag, or its number when unknown.
func HeaderTagName(tag int) string {
	if n, ok := tagNames[tag]; ok {
		return n
	}
	return fmt.Sprintf("TAG_%d", tag)
}

// SignatureTagName is HeaderTagName for the signature section, whose tags overlap.
func SignatureTagName(tag int) string {
	if n, ok := sigTagNames[tag]; ok {
		return n
	}
	return fmt.Sprintf("SIGTAG_%d", tag)
}
