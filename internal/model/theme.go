package model

import "fmt"

// RenderThemeAsStyleSheet renders the theme colors as a :root block of CSS
// custom properties, one declaration per color.
func RenderThemeAsStyleSheet(t Theme) string {
	return fmt.Sprintf(":root {\n  --primary: %s;\n  --secondary: %s;\n  --headerColor: %s;\n}",
		t.PrimaryColor, t.SecondaryColor, t.AccentColor)
}
