package guidelines

// Defaults returns the seed rubric used on first use and after a reset.
func Defaults() Rubric {
	return Rubric{
		RegulatoryCompliance: `1. FDA Regulations and Guidance Documents
a. Prescription Drug Advertising Regulations (21 CFR Part 202)
Fair Balance Rule: Visual assets must present both the benefits and risks of the drug in a balanced manner. Risks must be given comparable prominence to benefits.
Off-Label Promotion: Visual assets must not promote uses of the drug that are not approved by the FDA.
Clear and Conspicuous: All text, graphics, and audio must be clear, legible, and easy to understand.

b. FDA Guidance on Direct-to-Consumer (DTC) Advertising
Full Prescribing Information: Visual assets must provide an adequate provision for consumers to access the full prescribing information.
Non-Misleading Claims: Visual assets must not make false or misleading claims about the drug's efficacy or safety.

c. FDA Guidance on Presenting Risk Information
Readability: Risk information must be presented in a font size and color that is easy to read.
Placement: Risk information should be placed close to benefit claims and not separated by unrelated content.

2. PhRMA Code
Avoid Misleading Imagery: Visual assets must not use imagery that exaggerates the drug's benefits or minimizes its risks.

3. FTC Act (15 U.S.C. 45)
Truthful Advertising: Visual assets must not contain false, deceptive, or unsubstantiated claims.

4. HIPAA Privacy Rule
Patient Consent: Visual assets that include patient stories or images must have written consent from the patient.
De-Identification: If patient information is used, it must be de-identified.`,

		BrandIdentity: `1. Color Palette
Boehringer Blue is the dominant color and conveys trust and reliability. Bright Green highlights key messages or calls to action. Dark Green provides a stable contrast.
Colors must keep sufficient contrast for people with color vision deficiencies.

2. Typography
Use the corporate sans-serif typeface. Headlines are bold, body copy regular. Avoid more than two weights per asset.

3. Logo Usage
Keep clear space around the logo equal to the height of the letter "B". Never stretch, recolor or rotate the logo.

4. Imagery
Photography shows real people in authentic, optimistic moments. Avoid clinical or fear-based imagery.`,

		DrugBrief: `Product: Aggrenox (aspirin/extended-release dipyridamole) capsules 25 mg/200 mg.
Indication: To reduce the risk of stroke in patients who have had transient ischemia of the brain or completed ischemic stroke due to thrombosis.
Dosage: One capsule by mouth twice daily, one in the morning and one in the evening. Swallow whole, do not chew.
Key message: Twice-daily protection to help prevent another stroke.`,

		MedicalScientific: `Mechanism: Aspirin inhibits platelet aggregation by irreversible inhibition of cyclooxygenase. Dipyridamole inhibits the uptake of adenosine into platelets and endothelial cells.
Clinical evidence: ESPS-2 showed a relative risk reduction of stroke of 37% versus placebo.
Important safety information: Contraindicated in patients with hypersensitivity to any product ingredient and in patients with known allergy to NSAIDs. Risk of bleeding, including intracranial hemorrhage. Headache is the most common adverse reaction.`,

		TechnicalSpecs: `Formats: 1024x768 draft renders, final assets delivered as JPEG and PNG.
Resolution: 300 DPI for print, 72 DPI for web.
Safe area: Keep text and logos 5% away from every edge.
File naming: brand_campaign_asset_version.`,

		Accessibility: `Follow WCAG 2.1 AA. Minimum contrast ratio 4.5:1 for body text and 3:1 for large text.
Do not convey information by color alone.
Provide alt text for every image describing its content and purpose.
Minimum body font size 12pt in print, 16px on web.`,

		AudienceGuidelines: `Primary audience: adults aged 50+ who have experienced a stroke or TIA, and their caregivers.
Secondary audience: neurologists and primary care physicians.
Tone: warm, reassuring, hopeful and factual. Avoid jargon in patient-facing materials.
Representation: depict diverse patients in everyday settings.`,

		OtherGuidelines: "",

		Purpose: `Create a visual asset for a patient education campaign that encourages stroke survivors to talk to their doctor about secondary stroke prevention.`,

		PurposeOfImage: "",
		FinalPrompt:    "",
	}
}
