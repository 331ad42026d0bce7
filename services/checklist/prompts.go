package checklist

const researchPrompt = `You are researching a relocation or trip for a user. Based on the conversation below, use the web_search tool to gather current, destination-specific facts that a relocation checklist should reflect: visa and registration requirements, housing lead times, required documents, local deadlines.

When you are done researching, write a short summary of your findings and end it with a line of the form:
CONFIDENCE_SCORE: <number between 0 and 1>

Conversation:
%s`

const generatePrompt = `Create a personalized relocation checklist as a single JSON object for the user described in the conversation below.

The object must have: title, summary, destination, duration, stay_type, city_info {city_code, city_name, country}, and items. Each item has: title, description, importance (low, medium, high, or urgent), due_days (integer days from now), category, and order.

Ground the items in the research notes where they apply.

Research notes:
%s

Conversation:
%s`

const repairPrompt = `The JSON object below was meant to be a relocation checklist but does not conform to the required schema. Produce a corrected object that conforms. Keep every piece of valid information from the original; fill missing required fields sensibly.

Invalid object:
%s`

const convertPrompt = `Extract checklist metadata from the exchange below as a single JSON object with: summary, destination, duration, stay_type, and phase_names (a short ordered list of phase labels such as "Before departure", "First week", "First month").

Exchange:
%s`
