package document

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddTodo(t *testing.T) {
	testCases := []struct {
		name     string
		body     string
		section  string
		text     string
		expected string
	}{
		{
			name:     "Existing section",
			body:     "## Tasks\n- [ ] A\n\n## Notes\nN",
			section:  "tasks",
			text:     "B",
			expected: "## Tasks\n- [ ] A\n- [ ] B\n\n## Notes\nN",
		},
		{
			name:     "New section",
			body:     "## Summary\nS",
			section:  "Tasks",
			text:     "B",
			expected: "## Summary\nS\n\n## Tasks\n\n- [ ] B\n",
		},
		{
			name:     "New section goes before trailing log",
			body:     "## Summary\nS\n\n## Log\n\n---\n### → planning [2026-10-14 09:30:00 UTC]\n\n*by @alice*\n",
			section:  "Tasks",
			text:     "B",
			expected: "## Summary\nS\n\n## Tasks\n\n- [ ] B\n\n## Log\n\n---\n### → planning [2026-10-14 09:30:00 UTC]\n\n*by @alice*\n",
		},
		{
			name:     "Empty body",
			body:     "",
			section:  "Tasks",
			text:     "first",
			expected: "## Tasks\n\n- [ ] first\n",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			doc := Parse(tc.body)
			require.NoError(t, doc.AddTodo(tc.section, tc.text))

			out := Render(doc)
			assert.Equal(t, tc.expected, out)

			reparsed := Parse(out)
			s := reparsed.FindSection(tc.section)
			require.NotNil(t, s)
			assert.Equal(t, tc.text, s.Todos[len(s.Todos)-1].Text)
		})
	}
}

func TestAddTodoValidation(t *testing.T) {
	doc := Parse("## Tasks\n")
	assert.Error(t, doc.AddTodo("Tasks", "   "))
	assert.Error(t, doc.AddTodo("Tasks", "two\nlines"))
	assert.Error(t, doc.AddTodo("Log", "x"), "the Log section cannot be created as a checklist section")
}

func TestSetTodo(t *testing.T) {
	body := "## AC\n- [ ] A\n- [x] B\n\n## More\n- [ ] C\n"

	testCases := []struct {
		name     string
		ref      string
		checked  bool
		expected string
		wantErr  string
	}{
		{name: "Check by text", ref: "A", checked: true, expected: "## AC\n- [x] A\n- [x] B\n\n## More\n- [ ] C\n"},
		{name: "Uncheck by index", ref: "2", checked: false, expected: "## AC\n- [ ] A\n- [ ] B\n\n## More\n- [ ] C\n"},
		{name: "Index across sections", ref: "3", checked: true, expected: "## AC\n- [ ] A\n- [x] B\n\n## More\n- [x] C\n"},
		{name: "No-op keeps body", ref: "B", checked: true, expected: body},
		{name: "Index out of range", ref: "9", wantErr: "todo #9 not found (issue has 3 todos)"},
		{name: "Unknown text", ref: "Z", wantErr: `todo "Z" not found`},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			doc := Parse(body)
			todo, err := doc.SetTodo(tc.ref, tc.checked)
			if tc.wantErr != "" {
				require.Error(t, err)
				assert.Equal(t, tc.wantErr, err.Error())
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.checked, todo.Checked)
			assert.Equal(t, tc.expected, Render(doc))
		})
	}
}

func TestSetTodoNumericText(t *testing.T) {
	doc := Parse("## AC\n- [ ] 2024\n")
	todo, err := doc.SetTodo("2024", true)
	require.NoError(t, err)
	assert.Equal(t, "2024", todo.Text)
	assert.Equal(t, "## AC\n- [x] 2024\n", Render(doc))
}

func TestSetTodoKeepsCRLF(t *testing.T) {
	doc := Parse("## AC\r\n- [ ] A\r\n")
	_, err := doc.SetTodo("A", true)
	require.NoError(t, err)
	assert.Equal(t, "## AC\r\n- [x] A\r\n", Render(doc))
}

func TestConditionLifecycle(t *testing.T) {
	doc := Parse("## Summary\nS")

	_, err := doc.AddCondition("Deploy to staging", "Service is reachable")
	require.NoError(t, err)

	_, err = doc.AddCondition("Deploy to staging", "")
	assert.Error(t, err, "duplicate condition text")

	body := Render(doc)
	assert.Equal(t, strings.Join([]string{
		"## Summary",
		"S",
		"",
		"## Conditions",
		"",
		"### CONDITION: Deploy to staging",
		"",
		"- [ ] VERIFIED",
		"**Signed-off by:** _Not yet verified_",
		"**Requirements:** Service is reachable",
		"**Evidence:** _Not yet provided_",
		"",
	}, "\n"), body)

	doc = Parse(body)
	require.Len(t, doc.Conditions, 1)
	assert.Len(t, doc.UnverifiedConditions(), 1)

	_, err = doc.VerifyCondition("Deploy to staging", "alice")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNoEvidence))
	assert.Contains(t, err.Error(), "no evidence provided")

	_, err = doc.AttachEvidence("Deploy to staging", "https://ci.example.com/run/1")
	require.NoError(t, err)
	c, err := doc.VerifyCondition("Deploy to staging", "alice")
	require.NoError(t, err)
	assert.Equal(t, "@alice", c.SignedOffBy)

	body = Render(doc)
	assert.Equal(t, strings.Join([]string{
		"## Summary",
		"S",
		"",
		"## Conditions",
		"",
		"### CONDITION: Deploy to staging",
		"",
		"- [x] VERIFIED",
		"**Signed-off by:** @alice",
		"**Requirements:** Service is reachable",
		"**Evidence:** https://ci.example.com/run/1",
		"",
	}, "\n"), body)

	doc = Parse(body)
	assert.Empty(t, doc.UnverifiedConditions())
	assert.Empty(t, doc.AllTodos())
}

func TestAddConditionToExistingSection(t *testing.T) {
	body := "## Conditions\n\n### CONDITION: A\n- [ ] VERIFIED\n\n## Notes\nN"
	doc := Parse(body)

	_, err := doc.AddCondition("B", "r")
	require.NoError(t, err)

	out := Render(doc)
	assert.True(t, strings.HasPrefix(out, "## Conditions\n\n### CONDITION: A\n- [ ] VERIFIED\n\n### CONDITION: B\n"), out)
	assert.True(t, strings.HasSuffix(out, "**Evidence:** _Not yet provided_\n\n## Notes\nN"), out)

	reparsed := Parse(out)
	require.Len(t, reparsed.Conditions, 2)
	assert.Equal(t, "r", reparsed.FindCondition("B").Requirements)
}

func TestVerifyInsertsMissingFields(t *testing.T) {
	doc := Parse("## Conditions\n### CONDITION: Gate\n- [ ] VERIFIED\n\n## Next\n")

	_, err := doc.AttachEvidence("Gate", "logs attached")
	require.NoError(t, err)
	_, err = doc.VerifyCondition("Gate", "@bob")
	require.NoError(t, err)

	assert.Equal(t,
		"## Conditions\n### CONDITION: Gate\n- [x] VERIFIED\n**Signed-off by:** @bob\n**Evidence:** logs attached\n\n## Next\n",
		Render(doc))
}

func TestConditionErrors(t *testing.T) {
	doc := Parse("")

	_, err := doc.AddCondition(" ", "")
	assert.Error(t, err)
	_, err = doc.AttachEvidence("missing", "x")
	assert.EqualError(t, err, `condition "missing" not found`)
	_, err = doc.VerifyCondition("missing", "alice")
	assert.EqualError(t, err, `condition "missing" not found`)

	_, err = doc.AddCondition("Gate", "")
	require.NoError(t, err)
	_, err = doc.AttachEvidence("Gate", "  ")
	assert.Error(t, err)
}
