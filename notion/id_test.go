package notion

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeID(t *testing.T) {
	for ref, want := range map[string]string{
		"https://notion.so/workspace/My-Title-1bd00c01c1608010ae44f4305a2be2db":      "1bd00c01c1608010ae44f4305a2be2db",
		"https://www.notion.so/My-Title-1bd00c01c1608010ae44f4305a2be2db?pvs=4":      "1bd00c01c1608010ae44f4305a2be2db",
		"https://ink.notion.site/Post-1bd00c01-c160-8010-ae44-f4305a2be2db#section": "1bd00c01c1608010ae44f4305a2be2db",
		"notion.so/1bd00c01c1608010ae44f4305a2be2db/":                               "1bd00c01c1608010ae44f4305a2be2db",
		"https://notion.so/workspace/plain-slug":                                    "slug",
		"1bd0-0c01-c160-8010-ae44f4305a2be2db":                                       "1bd00c01c1608010ae44f4305a2be2db",
		"1bd00c01-c160-8010-ae44-f4305a2be2db":                                       "1bd00c01c1608010ae44f4305a2be2db",
		"  1bd00c01c1608010ae44f4305a2be2db ":                                        "1bd00c01c1608010ae44f4305a2be2db",
		"plain-slug":                                                                 "plainslug",
		"nested/plain-slug":                                                          "nestedplainslug",
		"":                                                                           "",
	} {
		assert.Equal(t, want, NormalizeID(ref), ref)
	}
}

func TestFormatUUID(t *testing.T) {
	assert.Equal(t, "1bd00c01-c160-8010-ae44-f4305a2be2db", FormatUUID("1bd00c01c1608010ae44f4305a2be2db"))
	assert.Equal(t, "1bd00c01-c160-8010-ae44-f4305a2be2db", FormatUUID("https://notion.so/x/Title-1bd00c01c1608010ae44f4305a2be2db"))
	assert.Equal(t, "plain-slug", FormatUUID("plain-slug"))
}
