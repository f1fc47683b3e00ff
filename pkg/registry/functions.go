package registry

import "github.com/dukex/chatflow/pkg/models"

var functionSnippets = map[models.FunctionType]string{
	models.FunctionTypeSaveName: `// Save the user's reply as the contact name
const name = message.text.trim();
contact.name = name;
return { name };`,
	models.FunctionTypeSaveEmail: `// Save the user's reply as the contact email
const email = message.text.trim().toLowerCase();
if (!/^[^\s@]+@[^\s@]+\.[^\s@]+$/.test(email)) {
  return { valid: false };
}
contact.email = email;
return { valid: true, email };`,
	models.FunctionTypeSavePhone: `// Save the user's reply as the contact phone number
const phone = message.text.replace(/[^\d+]/g, "");
if (phone.length < 7) {
  return { valid: false };
}
contact.phone = phone;
return { valid: true, phone };`,
}

// FunctionSnippet returns the fixed body of a predefined function type.
// Custom functions have no snippet.
func FunctionSnippet(t models.FunctionType) (string, bool) {
	snippet, ok := functionSnippets[t]

	return snippet, ok
}
