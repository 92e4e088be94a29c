// Package profile holds the rule sets shipped with dansbag: the DANS BagIt profile, and
// rules loaded from extension files.
package profile

import (
	"runtime"

	"github.com/birkland/dansbag"
	"github.com/birkland/dansbag/checks"
	"github.com/birkland/dansbag/metadata"
)

// Name of the DANS BagIt profile rule set
const Name = "DANS BagIt Profile v1"

// Bag-relative paths of the metadata documents
const (
	DatasetXML = "metadata/dataset.xml"
	FilesXML   = "metadata/files.xml"
)

// Label of the bag-info.txt element naming the depositing account in migration bags
const AccountLabel = "Data-Station-User-Account"

// DANS builds the rule set of the DANS BagIt profile.  Payload fixity is verified with
// one worker per CPU.
func DANS() *dansbag.RuleSet {
	return DANSWithFixityWorkers(runtime.NumCPU())
}

// DANSWithFixityWorkers is DANS, with the given number of concurrent workers recomputing
// payload and tag manifest digests
func DANSWithFixityWorkers(workers int) *dansbag.RuleSet {
	return dansbag.NewRuleSet(Name,
		// 1 BagIt
		rule("1.1.1", "bag is valid according to BagIt, version 0.97 or 1.0", checks.Declaration()),
		rule("1.1.2", "bag has a payload directory", checks.DirectoryExists(metadata.PayloadDir)),
		rule("1.1.3", "payload manifests are well-formed", checks.ManifestsValid()),
		rule("1.1.4", "every payload file is listed in every payload manifest", checks.ManifestsComplete(), "1.1.2", "1.1.3"),
		rule("1.1.5", "payload files match their manifest checksums", checks.Fixity(workers), "1.1.4"),
		rule("1.1.6", "tag files match their tag manifest checksums", checks.TagManifests(workers), "1.1.1"),
		rule("1.1.7", "Payload-Oxum, if present, matches the payload", checks.PayloadOxum(), "1.1.2", "1.2.1"),

		rule("1.2.1", "bag has a readable bag-info.txt", checks.InfoReadable()),
		rule("1.2.2", "bag-info.txt has exactly one Created element, an ISO 8601 date-time", checks.Created(), "1.2.1"),
		rule("1.2.3", "bag-info.txt has at most one Is-Version-Of element", checks.AtMostOnce("Is-Version-Of"), "1.2.1"),
		rule("1.2.4", "Is-Version-Of is a urn:uuid URN", checks.IsVersionOfUUID(), "1.2.3"),
		only(dansbag.DepositOnly,
			rule("1.2.5(a)", "bag-info.txt has no "+AccountLabel+" element", checks.Absent(AccountLabel), "1.2.1")),
		only(dansbag.MigrationOnly,
			rule("1.2.5(b)", "bag-info.txt has exactly one "+AccountLabel+" element", checks.ExactlyOnce(AccountLabel), "1.2.1")),
		rule("1.2.6", AccountLabel+" is not blank", checks.NotBlank(AccountLabel), "1.2.5(a)", "1.2.5(b)"),
		rule("1.2.7", "Bag-Count is accompanied by a Bag-Group-Identifier",
			mustExpression(`!("Bag-Count" in info) || "Bag-Group-Identifier" in info`, "Bag-Count requires a Bag-Group-Identifier"), "1.2.1"),

		rule("1.3.1", "bag has a SHA-1 payload manifest", checks.RequiredManifest(metadata.SHA1), "1.1.3"),

		// 2 Structure
		rule("2.1", "bag has a metadata directory", checks.DirectoryExists(metadata.MetadataDir)),
		rule("2.2(a)", "metadata directory holds dataset.xml", checks.FileExists(DatasetXML), "2.1"),
		rule("2.2(b)", "metadata directory holds files.xml", checks.FileExists(FilesXML), "2.1"),
		rule("2.2(c)", "metadata directory holds nothing else", checks.OnlyAllowed(metadata.MetadataDir, "dataset.xml", "files.xml"), "2.1"),
		only(dansbag.DepositOnly,
			rule("2.3", "payload file names contain none of "+checks.ForbiddenCharacters, checks.NoForbiddenCharacters(), "1.1.2")),
		rule("2.4", "payload file names are in Unicode normalization form C", checks.NormalizedFilenames(), "1.1.2"),
		rule("2.5", "payload holds regular files only", checks.NoSpecialFiles(), "1.1.2"),

		// 3 dataset.xml
		rule("3.1.1", "dataset.xml is a DDM document", checks.XMLRoot(DatasetXML, checks.DDMNamespace, "DDM"), "2.2(a)"),
		rule("3.1.2", "dataset has exactly one title", checks.Count(DatasetXML, "profile/title", 1, 1), "3.1.1"),
		rule("3.1.3", "dataset has a creation date", checks.Date(DatasetXML, "profile/created"), "3.1.1"),
		rule("3.1.4(a)", "dataset has valid access rights", checks.Vocabulary(DatasetXML, "profile/accessRights", checks.AccessRights...), "3.1.1"),
		rule("3.1.4(b)", "dataset has exactly one license, an http(s) URI", checks.License(DatasetXML), "3.1.1"),
		rule("3.2.1", "DAIs are valid", checks.Identifiers(DatasetXML, "//DAI", "DAI", checks.ValidDAI), "3.1.1"),
		rule("3.2.2", "ORCIDs are valid", checks.Identifiers(DatasetXML, "//ORCID", "ORCID", checks.ValidORCID), "3.1.1"),
		rule("3.2.3", "ISNIs are valid", checks.Identifiers(DatasetXML, "//ISNI", "ISNI", checks.ValidISNI), "3.1.1"),
		rule("3.2.4", "DOIs are valid", checks.TypedIdentifiers(DatasetXML, "DOI", checks.ValidDOI), "3.1.1"),
		only(dansbag.MigrationOnly,
			rule("3.3.1", "dataset has a DOI", checks.HasIdentifier(DatasetXML, "DOI"), "3.1.1")),

		// 4 files.xml
		rule("4.1", "files.xml is a files document", checks.XMLRoot(FilesXML, checks.FilesNamespace, "files"), "2.2(b)"),
		rule("4.2", "files.xml lists payload paths, each once", checks.FilePaths(FilesXML), "4.1"),
		rule("4.3", "files.xml describes exactly the payload", checks.FilesMatchPayload(FilesXML), "4.2", "1.1.2"),
		rule("4.4(a)", "accessibleToRights values are valid", checks.FileRightsValues(FilesXML, "accessibleToRights"), "4.1"),
		rule("4.4(b)", "visibleToRights values are valid", checks.FileRightsValues(FilesXML, "visibleToRights"), "4.1"),
	)
}

func rule(number, description string, check dansbag.Check, prerequisites ...string) dansbag.Rule {
	return dansbag.Rule{
		Number:        number,
		Description:   description,
		Check:         check,
		Prerequisites: prerequisites,
	}
}

func only(a dansbag.Applicability, r dansbag.Rule) dansbag.Rule {
	r.Applicability = a
	return r
}

func mustExpression(expr, message string) dansbag.Check {
	c, err := checks.Expression(expr, message)
	if err != nil {
		panic(err)
	}
	return c
}
