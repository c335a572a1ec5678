package filter

import (
	"strings"
	"testing"
)

func TestRejectsShortText(t *testing.T) {
	d := Evaluate("Pathophysiology of Heart Failure", strings.Repeat("x", 50))
	if d.Include {
		t.Fatalf("expected 50-char section to be rejected, got %+v", d)
	}
	if !strings.Contains(d.Reason, "too short") {
		t.Fatalf("unexpected reason: %q", d.Reason)
	}
}

func TestAcceptsClinicalContent(t *testing.T) {
	text := strings.Repeat(
		"Heart failure with reduced ejection fraction is managed with guideline-directed "+
			"medical therapy. The clinical diagnosis rests on symptoms of congestion and "+
			"objective evidence of cardiac dysfunction. First-line treatment includes an "+
			"ACE inhibitor titrated to the target dose, with close monitoring of renal "+
			"function and potassium. ", 10)
	d := Evaluate("Management of Chronic Heart Failure", text)
	if !d.Include {
		t.Fatalf("expected clinical paragraph to be accepted: %+v", d)
	}
}

func TestRejectsFrontMatter(t *testing.T) {
	text := "Table of Contents\n\nPreface ........ iv\nAcknowledgments ........ vi\n" +
		"Chapter 1 Introduction ........ 1\nChapter 2 Basics ........ 15\n" +
		strings.Repeat("Chapter listing continues with page numbers. ", 5)
	d := Evaluate("Contents", text)
	if d.Include {
		t.Fatalf("expected front matter to be rejected: %+v", d)
	}
}

func TestRejectsCopyrightPage(t *testing.T) {
	text := "Copyright 2024 by the publisher. All rights reserved. No part of this " +
		"publication may be reproduced without permission. ISBN 978-0-00-000000-0. " +
		"Published by Example Press, printed in the United States of America. " +
		"Library of Congress Cataloging-in-Publication Data available on request."
	d := Evaluate("", text)
	if d.Include {
		t.Fatalf("expected copyright page to be rejected: %+v", d)
	}
}

func TestMetadataWithStrongInstructionalContentSurvives(t *testing.T) {
	text := "Copyright restrictions apply to this figure. The treatment of diabetic " +
		"ketoacidosis begins with fluid resuscitation, followed by an insulin infusion " +
		"at a fixed dose. Monitor the patient for hypokalemia during therapy, since " +
		"insulin drives potassium intracellularly; the clinical course usually " +
		"improves within 24 hours as the diagnosis is confirmed and acidosis resolves."
	d := Evaluate("Diabetic Ketoacidosis", text)
	if !d.Include {
		t.Fatalf("expected instructional text with one metadata marker to pass: %+v", d)
	}
}
